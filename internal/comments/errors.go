package comments

import "errors"

// errNoChange aborts a store update that would not change anything.
var errNoChange = errors.New("no change")
