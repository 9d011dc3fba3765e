package renderer

import (
	"bytes"
	"errors"
	"testing"
)

func TestUploadBufferWrite(t *testing.T) {
	b := newUploadBuffer("objects", BufferUsageStorage, 16)
	tests := []struct {
		name    string
		offset  int
		data    []byte
		wantErr bool
	}{
		{"fits", 4, []byte{1, 2, 3, 4}, false},
		{"ends at size", 12, []byte{5, 6, 7, 8}, false},
		{"past end", 14, []byte{1, 2, 3}, true},
		{"negative offset", -1, []byte{1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Write(tt.offset, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Write() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrOutOfRange) {
				t.Errorf("Write() error = %v, want ErrOutOfRange", err)
			}
		})
	}

	got, err := b.Bytes(4, 12)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{1, 2, 3, 4, 0, 0, 0, 0, 5, 6, 7, 8}; !bytes.Equal(got, want) {
		t.Errorf("Bytes() = %v, want %v", got, want)
	}
}

func TestUploadBufferTakeDirty(t *testing.T) {
	b := newUploadBuffer("pass", BufferUsageUniform, 32)
	if _, data := b.takeDirty(); data != nil {
		t.Fatalf("fresh buffer reports dirty data %v", data)
	}
	_ = b.Write(8, []byte{1})
	_ = b.Write(20, []byte{2})

	offset, data := b.takeDirty()
	if offset != 8 || len(data) != 13 || data[0] != 1 || data[12] != 2 {
		t.Errorf("takeDirty() = %d, %v", offset, data)
	}
	if _, data := b.takeDirty(); data != nil {
		t.Errorf("second takeDirty() = %v, want nothing", data)
	}
}
