package token

import "testing"

func TestSplitStringDefaultSeparators(t *testing.T) {
	tk := New()
	if err := tk.SplitString("MRI_UART_MBED_USB MRI_UART_SHARE MRI_UART_BAUD=230400"); err != nil {
		t.Fatal(err)
	}
	if tk.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", tk.Count())
	}
	got, ok := tk.Get(2)
	if !ok || got != "MRI_UART_BAUD=230400" {
		t.Errorf("Get(2) = %q, %v", got, ok)
	}
}

func TestMatchingStringPrefix(t *testing.T) {
	tk := New()
	tk.SplitString("MRI_UART_SHARE MRI_UART_BAUD=230400")
	got, ok := tk.MatchingStringPrefix("MRI_UART_BAUD=")
	if !ok || got != "MRI_UART_BAUD=230400" {
		t.Errorf("MatchingStringPrefix = %q, %v", got, ok)
	}
	if _, ok := tk.MatchingStringPrefix("MRI_PRIORITY="); ok {
		t.Error("unexpected match for absent prefix")
	}
}

func TestTooManyTokens(t *testing.T) {
	tk := New()
	err := tk.SplitString("a b c d e f g h i j k")
	if err != ErrTooManyTokens {
		t.Errorf("err = %v, want ErrTooManyTokens", err)
	}
}

func TestParseFlags(t *testing.T) {
	flags, err := ParseFlags("MRI_UART_MBED_USB MRI_UART_SHARE MRI_UART_BAUD=230400")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := flags["MRI_UART_MBED_USB"]; !ok {
		t.Error("missing bare flag MRI_UART_MBED_USB")
	}
	if flags["MRI_UART_BAUD"] != "230400" {
		t.Errorf("MRI_UART_BAUD = %q, want 230400", flags["MRI_UART_BAUD"])
	}
}
