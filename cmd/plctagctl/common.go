package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	itag "github.com/tturner/ab-eip-client/internal/plc/tag"
	"github.com/tturner/ab-eip-client/pkg/plctag"
)

// tagFlags is the attribute-string surface shared by read and write,
// mirroring the flag set the teacher's client command exposes for its
// own target addressing (cmd/cipdip/client.go's --ip/--port pair,
// generalized here to the full libplctag attribute-string key set).
type tagFlags struct {
	protocol string
	gateway  string
	port     int
	path     string
	name     string
	dataType string
	count    int
	cacheMs  int
	timeout  time.Duration
}

func addTagFlags(cmd *cobra.Command, f *tagFlags) {
	cmd.Flags().StringVar(&f.protocol, "protocol", "", "protocol: ab_eip|plc5|slc|micrologix|micro800|omron (required)")
	cmd.MarkFlagRequired("protocol")
	cmd.Flags().StringVar(&f.gateway, "gateway", "", "gateway host (required)")
	cmd.MarkFlagRequired("gateway")
	cmd.Flags().IntVar(&f.port, "port", 44818, "gateway TCP port")
	cmd.Flags().StringVar(&f.path, "path", "", "CIP connection path, e.g. \"1,0\"")
	cmd.Flags().StringVar(&f.name, "name", "", "tag name (symbolic) or PCCC logical address, e.g. N7:0 (required)")
	cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&f.dataType, "type", "", "data type: BOOL|SINT|INT|DINT|LINT|USINT|UINT|UDINT|ULINT|REAL|LREAL (required)")
	cmd.MarkFlagRequired("type")
	cmd.Flags().IntVar(&f.count, "count", 1, "element count")
	cmd.Flags().IntVar(&f.cacheMs, "read-cache-ms", 0, "read-cache TTL in milliseconds")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 5*time.Second, "read/write timeout")
}

// attribString builds the libplctag-style attribute string Create
// expects from the flags a subcommand collected.
func (f *tagFlags) attribString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "protocol=%s&gateway=%s&port=%d&name=%s&data_type=%s&elem_count=%d&read_cache_ms=%d",
		f.protocol, f.gateway, f.port, f.name, f.dataType, f.count, f.cacheMs)
	if f.path != "" {
		fmt.Fprintf(&b, "&path=%s", f.path)
	}
	return b.String()
}

// openTag parses f and opens the resulting Tag.
func (f *tagFlags) openTag() (*plctag.Tag, error) {
	tg, err := plctag.Create(f.attribString())
	if err != nil {
		return nil, err
	}
	tg.SetTimeout(f.timeout)
	return tg, nil
}

// elemSize returns the per-element byte width for f's data type, or an
// error for the variable-length STRING type plctagctl does not support.
func (f *tagFlags) elemSize() (int, error) {
	dt, ok := itag.ParseDataType(f.dataType)
	if !ok {
		return 0, fmt.Errorf("unknown data type %q", f.dataType)
	}
	size := dt.Size()
	if size <= 0 {
		return 0, fmt.Errorf("data type %q is not a fixed-width scalar plctagctl can format", f.dataType)
	}
	return size, nil
}

// formatElement renders the value at element index i of tg (whose data
// type is dataType) as a decimal string.
func formatElement(tg *plctag.Tag, dataType string, i int) (string, error) {
	switch dataType {
	case "BOOL", "USINT":
		v, err := tg.GetUint8(i)
		return strconv.FormatUint(uint64(v), 10), err
	case "SINT":
		v, err := tg.GetInt8(i)
		return strconv.FormatInt(int64(v), 10), err
	case "UINT":
		v, err := tg.GetUint16(i * 2)
		return strconv.FormatUint(uint64(v), 10), err
	case "INT":
		v, err := tg.GetInt16(i * 2)
		return strconv.FormatInt(int64(v), 10), err
	case "UDINT":
		v, err := tg.GetUint32(i * 4)
		return strconv.FormatUint(uint64(v), 10), err
	case "DINT":
		v, err := tg.GetInt32(i * 4)
		return strconv.FormatInt(int64(v), 10), err
	case "ULINT":
		v, err := tg.GetUint64(i * 8)
		return strconv.FormatUint(v, 10), err
	case "LINT":
		v, err := tg.GetInt64(i * 8)
		return strconv.FormatInt(v, 10), err
	case "REAL":
		v, err := tg.GetFloat32(i * 4)
		return strconv.FormatFloat(float64(v), 'g', -1, 32), err
	case "LREAL":
		v, err := tg.GetFloat64(i * 8)
		return strconv.FormatFloat(v, 'g', -1, 64), err
	default:
		return "", fmt.Errorf("unknown data type %q", dataType)
	}
}

// setElement parses raw and stores it at element index i of tg.
func setElement(tg *plctag.Tag, dataType string, i int, raw string) error {
	switch dataType {
	case "BOOL", "USINT":
		v, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return err
		}
		return tg.SetUint8(i, uint8(v))
	case "SINT":
		v, err := strconv.ParseInt(raw, 10, 8)
		if err != nil {
			return err
		}
		return tg.SetInt8(i, int8(v))
	case "UINT":
		v, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			return err
		}
		return tg.SetUint16(i*2, uint16(v))
	case "INT":
		v, err := strconv.ParseInt(raw, 10, 16)
		if err != nil {
			return err
		}
		return tg.SetInt16(i*2, int16(v))
	case "UDINT":
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return err
		}
		return tg.SetUint32(i*4, uint32(v))
	case "DINT":
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return err
		}
		return tg.SetInt32(i*4, int32(v))
	case "ULINT":
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		return tg.SetUint64(i*8, v)
	case "LINT":
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		return tg.SetInt64(i*8, v)
	case "REAL":
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return err
		}
		return tg.SetFloat32(i*4, float32(v))
	case "LREAL":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		return tg.SetFloat64(i*8, v)
	default:
		return fmt.Errorf("unknown data type %q", dataType)
	}
}
