// Package media classifies dropped files by content and places converted
// copies in the per-kind sorted directories.
//
// Classification sniffs the leading bytes with h2non/filetype; file names and
// extensions are never trusted. Still images become jpg files under the image
// directory and videos become mp4 files under the video directory, with a
// numeric -N suffix when a name is already taken. GIFs and anything that is
// not an image or video are rejected and left in place.
package media
