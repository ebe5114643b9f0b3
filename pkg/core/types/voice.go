package types

import "strings"

// AudioFormat is the discrete format tag sent with a recorded answer.
type AudioFormat string

const (
	AudioFormatWebM AudioFormat = "webm"
	AudioFormatM4A  AudioFormat = "m4a"
	AudioFormatOGG  AudioFormat = "ogg"
	AudioFormatWAV  AudioFormat = "wav"
)

// audioFormatTable is checked in order; the first matching hint wins.
var audioFormatTable = []struct {
	hint   string
	format AudioFormat
}{
	{"webm", AudioFormatWebM},
	{"mp4", AudioFormatM4A},
	{"ogg", AudioFormatOGG},
	{"wav", AudioFormatWAV},
}

// AudioFormatFromMIME derives the format tag from a capture encoding hint
// such as "audio/webm;codecs=opus". Unknown hints map to webm.
func AudioFormatFromMIME(mimeType string) AudioFormat {
	hint := strings.ToLower(strings.TrimSpace(mimeType))
	for _, entry := range audioFormatTable {
		if strings.Contains(hint, entry.hint) {
			return entry.format
		}
	}
	return AudioFormatWebM
}

// Extension returns the file extension used when uploading this format.
func (f AudioFormat) Extension() string {
	switch f {
	case AudioFormatWebM, AudioFormatM4A, AudioFormatOGG, AudioFormatWAV:
		return "." + string(f)
	default:
		return ".webm"
	}
}

// ContentType returns the MIME type used for the multipart upload part.
func (f AudioFormat) ContentType() string {
	switch f {
	case AudioFormatM4A:
		return "audio/mp4"
	case AudioFormatOGG:
		return "audio/ogg"
	case AudioFormatWAV:
		return "audio/wav"
	default:
		return "audio/webm"
	}
}

// Valid reports whether f is one of the four accepted tags.
func (f AudioFormat) Valid() bool {
	switch f {
	case AudioFormatWebM, AudioFormatM4A, AudioFormatOGG, AudioFormatWAV:
		return true
	default:
		return false
	}
}
