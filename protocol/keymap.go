package protocol

// VKShift is the Windows virtual-key code for the Shift key.
const VKShift uint16 = 0x10

// ModifierShift is the modifier-field bit set while Shift is held.
const ModifierShift uint16 = 0x01

// CharToVirtualKey maps a character to its Windows virtual-key code and
// whether Shift must be held, assuming a US keyboard layout on the host.
// Characters with no mapping return ok=false, as do newline and carriage
// return, which are deliberately unmapped so a pasted string cannot submit a
// form on the remote side.
func CharToVirtualKey(c rune) (vk uint16, shift bool, ok bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return uint16(c - 'a' + 'A'), false, true
	case c >= 'A' && c <= 'Z':
		return uint16(c), true, true
	case c >= '0' && c <= '9':
		return uint16(c), false, true
	}

	switch c {
	case '!':
		return '1', true, true
	case '@':
		return '2', true, true
	case '#':
		return '3', true, true
	case '$':
		return '4', true, true
	case '%':
		return '5', true, true
	case '^':
		return '6', true, true
	case '&':
		return '7', true, true
	case '*':
		return '8', true, true
	case '(':
		return '9', true, true
	case ')':
		return '0', true, true
	case ' ':
		return 0x20, false, true
	case '\t':
		return 0x09, false, true
	case '-':
		return 0xBD, false, true
	case '_':
		return 0xBD, true, true
	case '=':
		return 0xBB, false, true
	case '+':
		return 0xBB, true, true
	case '[':
		return 0xDB, false, true
	case '{':
		return 0xDB, true, true
	case ']':
		return 0xDD, false, true
	case '}':
		return 0xDD, true, true
	case '\\':
		return 0xDC, false, true
	case '|':
		return 0xDC, true, true
	case ';':
		return 0xBA, false, true
	case ':':
		return 0xBA, true, true
	case '\'':
		return 0xDE, false, true
	case '"':
		return 0xDE, true, true
	case ',':
		return 0xBC, false, true
	case '<':
		return 0xBC, true, true
	case '.':
		return 0xBE, false, true
	case '>':
		return 0xBE, true, true
	case '/':
		return 0xBF, false, true
	case '?':
		return 0xBF, true, true
	case '`':
		return 0xC0, false, true
	case '~':
		return 0xC0, true, true
	}
	return 0, false, false
}
