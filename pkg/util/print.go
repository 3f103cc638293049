package util

import (
	"fmt"
	"io"
	"unicode"
)

func ToPrintableString(b []byte) string {
	sz := len(b)
	if sz == 0 {
		return ""
	}
	buf := make([]byte, sz)
	for i := 0; i < sz; i++ {
		if b[i] < 32 || b[i] > 126 {
			buf[i] = '.'
		} else {
			buf[i] = b[i]
		}
	}
	return string(buf)
}

func ToHexString(data []byte) string {
	return fmt.Sprintf("%X", data)
}

func ToPrintableAndHexString(data []byte) string {
	return fmt.Sprintf("%s [%X]", ToPrintableString(data), data)
}

// HexDump writes a classic offset/hex/ascii dump of data to w.
func HexDump(w io.Writer, data []byte) {
	szData := len(data)
	start := 0
	end := 16
	for start < szData {
		if end > szData {
			end = szData
		}
		fmt.Fprintf(w, "%08X  ", start)
		for j := start; j < start+16; j++ {
			if j < end {
				fmt.Fprintf(w, "%02X ", data[j])
			} else {
				fmt.Fprint(w, "   ")
			}
			if (j-start)%8 == 7 {
				fmt.Fprint(w, " ")
			}
		}
		fmt.Fprint(w, "|")
		for j := start; j < end; j++ {
			v := data[j]
			if unicode.IsPrint(rune(v)) && v < 128 {
				fmt.Fprintf(w, "%c", v)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprint(w, "|\n")
		start += 16
		end += 16
	}
}
