package tlv

import (
	"bufio"
	"bytes"
	"io"
	"testing"
)

func TestUvarintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40, ^uint64(0)} {
		var buf bytes.Buffer
		if err := WriteUvarint(&buf, v); err != nil {
			t.Fatalf("WriteUvarint(%d) error = %v", v, err)
		}
		got, err := ReadUvarint(bufio.NewReader(&buf))
		if err != nil {
			t.Fatalf("ReadUvarint() error = %v", err)
		}
		if got != v {
			t.Fatalf("round trip %d: got %d", v, got)
		}
	}
}

func TestFieldRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteVarintField(&buf, 5, 1700000000); err != nil {
		t.Fatalf("WriteVarintField() error = %v", err)
	}
	if err := WriteStringField(&buf, 3, "alice"); err != nil {
		t.Fatalf("WriteStringField() error = %v", err)
	}
	if err := WriteBytesField(&buf, 1, bytes.Repeat([]byte{0xAB}, 32)); err != nil {
		t.Fatalf("WriteBytesField() error = %v", err)
	}
	if err := EndRecord(&buf); err != nil {
		t.Fatalf("EndRecord() error = %v", err)
	}

	r := bufio.NewReader(&buf)
	fields, err := ReadAllFields(r)
	if err != nil {
		t.Fatalf("ReadAllFields() error = %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("got %d fields, want 3", len(fields))
	}
	if fields[0].Number != 5 || fields[0].Varint != 1700000000 {
		t.Fatalf("field 0 = %+v", fields[0])
	}
	if fields[1].Number != 3 || string(fields[1].Bytes) != "alice" {
		t.Fatalf("field 1 = %+v", fields[1])
	}
	if fields[2].Number != 1 || len(fields[2].Bytes) != 32 {
		t.Fatalf("field 2 = %+v", fields[2])
	}
}

func TestReadAllFieldsMultipleRecords(t *testing.T) {
	var buf bytes.Buffer
	WriteStringField(&buf, 3, "first")
	EndRecord(&buf)
	WriteStringField(&buf, 3, "second")
	EndRecord(&buf)

	r := bufio.NewReader(&buf)
	rec1, err := ReadAllFields(r)
	if err != nil || len(rec1) != 1 || string(rec1[0].Bytes) != "first" {
		t.Fatalf("rec1 = %+v, err = %v", rec1, err)
	}
	rec2, err := ReadAllFields(r)
	if err != nil || len(rec2) != 1 || string(rec2[0].Bytes) != "second" {
		t.Fatalf("rec2 = %+v, err = %v", rec2, err)
	}
	_, err = ReadAllFields(r)
	if err != io.EOF {
		t.Fatalf("third ReadAllFields() error = %v, want io.EOF", err)
	}
}
