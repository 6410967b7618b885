package codec

import "testing"

func TestCursorPutGetRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	w := NewWriter(buf)

	if err := w.PutUint8(0xAB); err != nil {
		t.Fatalf("PutUint8: %v", err)
	}
	if err := w.PutUint16(0x1234); err != nil {
		t.Fatalf("PutUint16: %v", err)
	}
	if err := w.PutUint32(0xDEADBEEF); err != nil {
		t.Fatalf("PutUint32: %v", err)
	}
	if err := w.PutInt32(-42); err != nil {
		t.Fatalf("PutInt32: %v", err)
	}
	if err := w.PutUint64(0x0102030405060708); err != nil {
		t.Fatalf("PutUint64: %v", err)
	}
	if err := w.PutBytesWithSize([]byte("hello")); err != nil {
		t.Fatalf("PutBytesWithSize: %v", err)
	}

	r := NewReader(buf)
	if v, err := r.GetUint8(); err != nil || v != 0xAB {
		t.Fatalf("GetUint8 = %v, %v", v, err)
	}
	if v, err := r.GetUint16(); err != nil || v != 0x1234 {
		t.Fatalf("GetUint16 = %v, %v", v, err)
	}
	if v, err := r.GetUint32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("GetUint32 = %v, %v", v, err)
	}
	if v, err := r.GetInt32(); err != nil || v != -42 {
		t.Fatalf("GetInt32 = %v, %v", v, err)
	}
	if v, err := r.GetUint64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("GetUint64 = %v, %v", v, err)
	}
	if v, err := r.GetBytesWithSize(); err != nil || string(v) != "hello" {
		t.Fatalf("GetBytesWithSize = %q, %v", v, err)
	}
}

func TestCursorOverflow(t *testing.T) {
	buf := make([]byte, 2)
	w := NewWriter(buf)
	if err := w.PutUint8(1); err != nil {
		t.Fatalf("PutUint8: %v", err)
	}
	if err := w.PutUint64(1); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestCursorPadTo(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)
	if err := w.PutUint32(7); err != nil {
		t.Fatalf("PutUint32: %v", err)
	}
	if err := w.PadTo(16); err != nil {
		t.Fatalf("PadTo: %v", err)
	}
	for i := 4; i < 16; i++ {
		if buf[i] != 0 {
			t.Fatalf("byte %d not zero-padded: %x", i, buf[i])
		}
	}
}

func TestCursorSkip(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	r := NewReader(buf)
	if err := r.Skip(2); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	v, err := r.GetUint8()
	if err != nil || v != 3 {
		t.Fatalf("GetUint8 after Skip = %v, %v", v, err)
	}
	if err := r.Skip(100); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}
