package measure

// MaxFrameLen is the longest sanitized frame handed to the normalizer.
const MaxFrameLen = 9

// Sanitize returns a fresh copy of frame with every zero byte removed,
// truncated to MaxFrameLen bytes. The input is never modified.
func Sanitize(frame []byte) []byte {
	out := make([]byte, 0, MaxFrameLen)
	for _, b := range frame {
		if b == 0 {
			continue
		}
		out = append(out, b)
		if len(out) == MaxFrameLen {
			break
		}
	}
	return out
}
