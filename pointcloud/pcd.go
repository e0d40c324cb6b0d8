package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// PCDType is the on-disk encoding of a pcd file.
type PCDType int

const (
	// PCDAscii is the ascii pcd encoding.
	PCDAscii PCDType = 0
	// PCDBinary is the binary little-endian pcd encoding.
	PCDBinary PCDType = 1
)

// ToPCD writes the organized cloud as a pcd with x y z fields. WIDTH/HEIGHT
// carry the pixel grid dimensions so the cloud round-trips as organized.
func ToPCD(cloud *Dense, out io.Writer, outputType PCDType) error {
	_, err := fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS x y z\n"+
		"SIZE 4 4 4\n"+
		"TYPE F F F\n"+
		"COUNT 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n",
		cloud.Width(), cloud.Height(), cloud.Size())
	if err != nil {
		return err
	}

	switch outputType {
	case PCDBinary:
		if _, err = fmt.Fprintf(out, "DATA binary\n"); err != nil {
			return err
		}
	case PCDAscii:
		if _, err = fmt.Fprintf(out, "DATA ascii\n"); err != nil {
			return err
		}
	default:
		return errors.Errorf("unsupported pcd output type %v", outputType)
	}

	buf := make([]byte, 12)
	for k := 0; k < cloud.Size(); k++ {
		p := cloud.AtIndex(k)
		switch outputType {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(p.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(p.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p.Z)))
			_, err = out.Write(buf)
		case PCDAscii:
			_, err = fmt.Fprintf(out, "%f %f %f\n", p.X, p.Y, p.Z)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type pcdHeader struct {
	width  uint64
	height uint64
	points uint64
	data   PCDType
}

const pcdCommentChar = "#"

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	var err error
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	if field != name {
		return errors.Errorf("line is supposed to start with %s but is %q", name, line)
	}

	switch name {
	case "VERSION":
		if value != ".7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		if value != "x y z" {
			return errors.Errorf("unsupported pcd fields %q, organized clouds carry x y z only", value)
		}
	case "SIZE":
		if value != "4 4 4" {
			return errors.Errorf("unsupported pcd SIZE %q", value)
		}
	case "TYPE":
		if value != "F F F" {
			return errors.Errorf("unsupported pcd TYPE %q", value)
		}
	case "COUNT":
		if value != "1 1 1" {
			return errors.Errorf("unsupported pcd COUNT %q", value)
		}
	case "WIDTH":
		if header.width, err = strconv.ParseUint(value, 10, 64); err != nil {
			return errors.Errorf("invalid WIDTH field %s: %s", value, err)
		}
	case "HEIGHT":
		if header.height, err = strconv.ParseUint(value, 10, 64); err != nil {
			return errors.Errorf("invalid HEIGHT field %s: %s", value, err)
		}
	case "VIEWPOINT":
		if len(strings.Split(value, " ")) != 7 {
			return errors.Errorf("unexpected number of fields in VIEWPOINT line %q", line)
		}
	case "POINTS":
		if header.points, err = strconv.ParseUint(value, 10, 64); err != nil {
			return errors.Errorf("invalid POINTS field %s: %s", value, err)
		}
		if header.points != header.width*header.height {
			return errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d",
				header.points, header.width*header.height)
		}
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		default:
			return errors.Errorf("unsupported pcd data type %q", value)
		}
	}
	return nil
}

// ReadPCD parses an organized x-y-z pcd written by ToPCD.
func ReadPCD(inRaw io.Reader) (*Dense, error) {
	header := pcdHeader{}
	in := bufio.NewReader(inRaw)
	headerLineCount := 0
	for headerLineCount < len(pcdHeaderFields) {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "error reading header line %d", headerLineCount)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, headerLineCount, &header); err != nil {
			return nil, err
		}
		headerLineCount++
	}
	if header.width == 0 || header.height == 0 {
		return nil, errors.Errorf("organized pcd needs nonzero WIDTH and HEIGHT, got %dx%d",
			header.width, header.height)
	}

	switch header.data {
	case PCDAscii:
		return readPCDAscii(in, header)
	case PCDBinary:
		return readPCDBinary(in, header)
	default:
		return nil, errors.Errorf("unsupported pcd data type %v", header.data)
	}
}

// ReadPCDFromFile parses an organized pcd from the given path.
func ReadPCDFromFile(fn string) (cloud *Dense, err error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ReadPCD(f)
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (*Dense, error) {
	cloud := NewDense(int(header.width), int(header.height))
	for i := 0; i < int(header.points); i++ {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
		tokens := strings.Fields(line)
		if len(tokens) != 3 {
			return nil, errors.Errorf("unexpected number of fields in point %d", i)
		}
		var p r3.Vector
		for j, dst := range []*float64{&p.X, &p.Y, &p.Z} {
			if *dst, err = strconv.ParseFloat(tokens[j], 64); err != nil {
				return nil, errors.Errorf("invalid point %d field %s: %s", i, tokens[j], err)
			}
		}
		cloud.SetIndex(i, p)
	}
	return cloud, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (*Dense, error) {
	cloud := NewDense(int(header.width), int(header.height))
	buf := make([]byte, 12)
	for i := 0; i < int(header.points); i++ {
		if _, err := io.ReadFull(in, buf); err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
		cloud.SetIndex(i, r3.Vector{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4:]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[8:]))),
		})
	}
	return cloud, nil
}

// WritePCDToFile writes the cloud to the given path.
func WritePCDToFile(cloud *Dense, fn string, outputType PCDType) (err error) {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err = ToPCD(cloud, w, outputType); err != nil {
		return err
	}
	return w.Flush()
}
