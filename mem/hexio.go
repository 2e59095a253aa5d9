package mem

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// cellHexDigits is the payload width of one dump line, 2 digits per byte.
const cellHexDigits = CellBytes * 2

// ReadImage parses a hex memory dump into an image. Each data line has the
// form "@<addr> <payload>", both in hex. Payloads shorter than 64 digits
// are zero-extended on the left; longer payloads keep only the lowest 64
// digits. Lines that do not start with "@" and lines whose address falls
// outside a bounded image are ignored.
func ReadImage(r io.Reader, im *Image) error {
	sc := bufio.NewScanner(r)
	lineNo := 0

	for sc.Scan() {
		lineNo++

		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "@") {
			continue
		}

		addr, err := strconv.ParseUint(
			strings.TrimPrefix(fields[0], "@"), 16, 32)
		if err != nil {
			return errors.Wrapf(err, "line %d: bad cell address", lineNo)
		}

		if len(fields) < 2 {
			return errors.Errorf("line %d: missing cell payload", lineNo)
		}

		data, err := parseCellHex(fields[1])
		if err != nil {
			return errors.Wrapf(err, "line %d", lineNo)
		}

		err = im.WriteCell(int(addr), data)
		if errors.Is(err, ErrCellRange) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "line %d", lineNo)
		}
	}

	return sc.Err()
}

func parseCellHex(payload string) ([CellBytes]byte, error) {
	var cell [CellBytes]byte

	for _, c := range payload {
		if !isHexDigit(c) {
			return cell, errors.Errorf("bad cell payload %q", payload)
		}
	}

	switch {
	case len(payload) > cellHexDigits:
		payload = payload[len(payload)-cellHexDigits:]
	case len(payload) < cellHexDigits:
		payload = strings.Repeat("0", cellHexDigits-len(payload)) + payload
	}

	raw, err := hex.DecodeString(payload)
	if err != nil {
		return cell, errors.Wrapf(err, "bad cell payload %q", payload)
	}

	copy(cell[:], raw)

	return cell, nil
}

func isHexDigit(c rune) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'f':
		return true
	case c >= 'A' && c <= 'F':
		return true
	}

	return false
}

// WriteImage dumps an image in the format that ReadImage parses. A bounded
// image dumps every cell up to its bound. An unbounded image dumps up to
// the highest touched cell.
func WriteImage(w io.Writer, im *Image) error {
	last := im.NumCells() - 1
	if im.NumCells() == 0 {
		last = im.HighestTouched()
	}

	bw := bufio.NewWriter(w)

	for addr := 0; addr <= last; addr++ {
		cell, err := im.ReadCell(addr)
		if err != nil {
			return err
		}

		fmt.Fprintf(bw, "@%04x %s\n", addr, hex.EncodeToString(cell[:]))
	}

	return bw.Flush()
}

// LoadImageFile reads a hex dump file into an image.
func LoadImageFile(name string, im *Image) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	return errors.Wrapf(ReadImage(f, im), "load %s", name)
}

// SaveImageFile writes an image to a hex dump file.
func SaveImageFile(name string, im *Image) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}

	if err := WriteImage(f, im); err != nil {
		f.Close()
		return errors.Wrapf(err, "save %s", name)
	}

	return f.Close()
}
