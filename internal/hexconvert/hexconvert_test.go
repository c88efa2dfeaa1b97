package hexconvert

import "testing"

func TestByteRoundTrip(t *testing.T) {
	for v := 0; v <= 0xFF; v++ {
		hex := ByteToHex(byte(v))
		got, err := HexToByte(hex[0], hex[1])
		if err != nil {
			t.Fatalf("HexToByte(%q) error: %v", hex, err)
		}
		if got != byte(v) {
			t.Errorf("round trip for %#x gave %#x", v, got)
		}
	}
}

func TestCharToNibbleInvalid(t *testing.T) {
	testCases := []byte{'g', 'Z', ' ', '#', '$'}
	for _, c := range testCases {
		if _, err := CharToNibble(c); err != ErrInvalidDigit {
			t.Errorf("CharToNibble(%q) = %v, want ErrInvalidDigit", c, err)
		}
	}
}

func TestCharToNibbleCaseInsensitive(t *testing.T) {
	lo, err := CharToNibble('a')
	if err != nil || lo != 10 {
		t.Errorf("CharToNibble('a') = %d, %v", lo, err)
	}
	hi, err := CharToNibble('A')
	if err != nil || hi != 10 {
		t.Errorf("CharToNibble('A') = %d, %v", hi, err)
	}
}
