// Command uestack-pcap summarises pcap traces written by the UE stack.
// It knows the user-defined link types the trace sinks emit (MAC, NAS,
// MAC-NR) and prints one line per captured PDU plus a per-file total.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/uestack/internal/trace"
)

const previewBytes = 16

type record struct {
	Index  int    `json:"index"`
	Time   string `json:"time"`
	Link   string `json:"link"`
	Length int    `json:"length"`
	Data   string `json:"data"`
}

func main() {
	asJSON := flag.Bool("json", false, "emit one JSON object per PDU")
	max := flag.Int("max", 0, "stop after this many PDUs per file (0 = all)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: uestack-pcap [-json] [-max n] file.pcap ...")
		os.Exit(2)
	}

	for _, path := range flag.Args() {
		if err := dump(os.Stdout, path, *asJSON, *max); err != nil {
			log.Fatalf("%s: %v", path, err)
		}
	}
}

func dump(out io.Writer, path string, asJSON bool, max int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return err
	}

	link := linkName(r.LinkType())
	enc := json.NewEncoder(out)

	var (
		n     int
		total int
		first time.Time
		last  time.Time
	)
	for {
		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		n++
		total += ci.Length
		if first.IsZero() {
			first = ci.Timestamp
		}
		last = ci.Timestamp

		if asJSON {
			rec := record{
				Index:  n,
				Time:   ci.Timestamp.UTC().Format(time.RFC3339Nano),
				Link:   link,
				Length: ci.Length,
				Data:   fmt.Sprintf("%x", data),
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "%5d  %s  %-6s %4dB  %s\n",
				n, ci.Timestamp.Format("15:04:05.000"), link, ci.Length, preview(data))
		}
		if max > 0 && n >= max {
			break
		}
	}

	if !asJSON {
		var span time.Duration
		if n > 0 {
			span = last.Sub(first)
		}
		fmt.Fprintf(out, "%s: %d PDUs, %d bytes, %s span (%s)\n",
			path, n, total, span.Round(time.Millisecond), link)
	}
	return nil
}

func preview(data []byte) string {
	if len(data) <= previewBytes {
		return fmt.Sprintf("% x", data)
	}
	return fmt.Sprintf("% x ...", data[:previewBytes])
}

func linkName(lt layers.LinkType) string {
	switch lt {
	case trace.LinkTypeMAC:
		return "MAC"
	case trace.LinkTypeNAS:
		return "NAS"
	case trace.LinkTypeMACNR:
		return "MAC-NR"
	default:
		return fmt.Sprintf("DLT%d", int(lt))
	}
}
