package wire

import (
	"bufio"
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte("hello metaserver")
	var buf bytes.Buffer
	if err := WriteFrame(&buf, uint16(OpLogin), payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Type != uint16(OpLogin) {
		t.Errorf("type = %d, want %d", got.Type, OpLogin)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("payload = %q, want %q", got.Payload, payload)
	}
}

func TestReadFrameResyncOnBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0xFF)
	buf.WriteByte(0xFF)
	if _, err := ReadFrame(bufio.NewReader(&buf)); err != ErrResync {
		t.Fatalf("err = %v, want ErrResync", err)
	}
}

// TestReadFrameResyncAdvancesOneByte plants the magic one byte off from
// where the first call starts scanning. If a mismatch consumed both
// candidate bytes instead of one, this magic would be skipped entirely
// and the connection would desynchronize forever.
func TestReadFrameResyncAdvancesOneByte(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0x00) // junk byte offsetting the magic by one
	if err := WriteFrame(&buf, uint16(OpLogin), []byte("hi")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	br := bufio.NewReader(&buf)
	_, err := ReadFrame(br)
	if err != ErrResync {
		t.Fatalf("first ReadFrame err = %v, want ErrResync", err)
	}

	got, err := ReadFrame(br)
	if err != nil {
		t.Fatalf("second ReadFrame: %v", err)
	}
	if got.Type != uint16(OpLogin) || string(got.Payload) != "hi" {
		t.Fatalf("got %+v, want realigned OpLogin frame", got)
	}
}

func TestReadFrameOversized(t *testing.T) {
	var buf bytes.Buffer
	// Write a header declaring a length beyond MaxPayloadLen without the body.
	hdr := make([]byte, HeaderLen)
	hdr[0], hdr[1] = 0xAD, 0xDE // magic LE
	hdr[4] = 0xFF
	hdr[5] = 0xFF
	hdr[6] = 0xFF
	hdr[7] = 0xFF
	buf.Write(hdr)

	if _, err := ReadFrame(bufio.NewReader(&buf)); err != ErrOversized {
		t.Fatalf("err = %v, want ErrOversized", err)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteU8(7)
	w.WriteBool(true)
	w.WriteU16(65000)
	w.WriteU32(4000000000)
	w.WriteI32(-12345)
	w.WriteString("alice")
	w.WriteBytes([]byte{1, 2, 3})

	r := NewReader(w.Bytes())
	if v := r.ReadU8(); v != 7 {
		t.Errorf("ReadU8 = %d, want 7", v)
	}
	if v := r.ReadBool(); v != true {
		t.Errorf("ReadBool = %v, want true", v)
	}
	if v := r.ReadU16(); v != 65000 {
		t.Errorf("ReadU16 = %d, want 65000", v)
	}
	if v := r.ReadU32(); v != 4000000000 {
		t.Errorf("ReadU32 = %d, want 4000000000", v)
	}
	if v := r.ReadI32(); v != -12345 {
		t.Errorf("ReadI32 = %d, want -12345", v)
	}
	if v := r.ReadString(); v != "alice" {
		t.Errorf("ReadString = %q, want alice", v)
	}
	if v := r.ReadBytes(3); !bytes.Equal(v, []byte{1, 2, 3}) {
		t.Errorf("ReadBytes = %v, want [1 2 3]", v)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", r.Remaining())
	}
}

func TestWriteStringTruncatesToDeclaredMaximum(t *testing.T) {
	long := bytes.Repeat([]byte("x"), 70000)
	w := NewWriter()
	w.WriteString(string(long))

	r := NewReader(w.Bytes())
	got := r.ReadString()
	if len(got) != 0xFFFF {
		t.Errorf("len(got) = %d, want %d", len(got), 0xFFFF)
	}
}
