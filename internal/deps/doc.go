// Package deps checks that the external binaries dropcast shells out to are
// installed.
package deps
