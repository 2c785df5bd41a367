// Package ffprobe checks converted videos with ffprobe before they are
// queued: a file without a video stream, a frame size or a duration is a
// failed conversion.
package ffprobe
