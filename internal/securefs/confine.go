package securefs

import (
	"path"
	"regexp"
)

// leadingParents matches a run of ".." segments at the start of a path,
// each followed by a slash, a backslash or the end of the string.
var leadingParents = regexp.MustCompile(`^(\.\.(/|\\|$))+`)

// Confine maps any caller-supplied path to a rooted, slash-separated vault
// path. It never fails: "", "..", and "../../x" become "/" and "/x".
//
// Interior ".." segments are resolved lexically before anchoring, so
// "a/../b" is "/b" and "a/../../b" is "/b" as well. Confine does not touch
// the filesystem; symbolic links are handled by the os.Root sandbox.
func Confine(userPath string) string {
	cleaned := leadingParents.ReplaceAllString(path.Clean(userPath), "")
	return path.Join("/", cleaned)
}
