package protocol

// MaxClipboardPaste caps the text accepted by EncodeClipboardPaste, matching
// the host's paste buffer limit.
const MaxClipboardPaste = 65536

// EncodeClipboardPaste expands pasted text into a sequence of encoded
// key-down/key-up packets the host replays as keystrokes. Shifted characters
// get a Shift press/release bracket; each event is 1µs after the previous
// and characters are spaced a further 10µs apart, so the host sees a
// strictly ordered, believable typing sequence. Characters without a key
// mapping are skipped.
func EncodeClipboardPaste(enc *Encoder, text string) [][]byte {
	if len(text) > MaxClipboardPaste {
		text = text[:MaxClipboardPaste]
	}

	var packets [][]byte
	base := enc.TimestampUs()
	var offset uint64

	for _, c := range text {
		vk, shift, ok := CharToVirtualKey(c)
		if !ok {
			continue
		}

		var modifiers uint16
		if shift {
			modifiers = ModifierShift
			packets = append(packets, enc.Encode(KeyDown{
				Keycode:     VKShift,
				Modifiers:   ModifierShift,
				TimestampUs: base + offset,
			}))
			offset++
		}

		packets = append(packets, enc.Encode(KeyDown{
			Keycode:     vk,
			Modifiers:   modifiers,
			TimestampUs: base + offset,
		}))
		offset++

		packets = append(packets, enc.Encode(KeyUp{
			Keycode:     vk,
			Modifiers:   modifiers,
			TimestampUs: base + offset,
		}))
		offset++

		if shift {
			packets = append(packets, enc.Encode(KeyUp{
				Keycode:     VKShift,
				TimestampUs: base + offset,
			}))
			offset++
		}

		offset += 10
	}
	return packets
}
