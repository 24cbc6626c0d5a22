// Copyright (c) 2019, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package pattern_test

import (
	"fmt"
	"regexp"

	"github.com/hsh-shell/hsh/pattern"
)

func ExampleRegexp() {
	expr, err := pattern.Regexp(`foo?bar*`, 0)
	if err != nil {
		return
	}
	fmt.Println(expr)
	rx := regexp.MustCompile(expr)
	fmt.Println(rx.MatchString("foo bar baz"))
	// Output:
	// (?s)foo.bar.*
	// true
}

func ExampleMatch() {
	fmt.Println(pattern.Match(`[bc]at`, "bat"))
	fmt.Println(pattern.Match(`[!bc]at`, "bat"))
	// Output:
	// true
	// false
}
