package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/probekit/internal/protocol"
	"github.com/muurk/probekit/internal/ui"
)

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.AddCommand(decodeAdvertisingCmd)
	decodeCmd.AddCommand(decodeStatusCmd)
	decodeCmd.AddCommand(decodeFrameCmd)
	decodeCmd.AddCommand(decodeStreamCmd)
}

// decodeCmd groups offline decoders
var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode captured probe payloads",
	Long: `Decode payloads captured with a BLE sniffer or another tool, without
needing a probe in range.

Hex may contain spaces, colons or a 0x prefix.`,
}

var decodeAdvertisingCmd = &cobra.Command{
	Use:     "advertising <hex>",
	Short:   "Decode manufacturer data (company identifier removed)",
	Example: `  probekit decode advertising "01 34 12 00 10 ..."`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := parseHex(args)
		if err != nil {
			return err
		}
		adv, err := protocol.ParseAdvertising(data)
		if err != nil {
			return fmt.Errorf("decode advertising: %w", err)
		}
		return printDecoded(cmd.OutOrStdout(), adv, adv.String())
	},
}

var decodeStatusCmd = &cobra.Command{
	Use:   "status <hex>",
	Short: "Decode a probe status notification",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := parseHex(args)
		if err != nil {
			return err
		}
		st, err := protocol.ParseStatus(data)
		if err != nil {
			return fmt.Errorf("decode status: %w", err)
		}
		return printDecoded(cmd.OutOrStdout(), st, st.String())
	},
}

var decodeFrameCmd = &cobra.Command{
	Use:   "frame <hex>",
	Short: "Decode a UART request or response envelope",
	Long: `Decode a UART envelope. Requests are tried first; if the bytes do not
form a valid request they are decoded as a response, and the response payload
is interpreted by message type.`,
	Example: `  probekit decode frame cafe....`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := parseHex(args)
		if err != nil {
			return err
		}

		if f, reqErr := protocol.ParseFrame(data); reqErr == nil && f.Type.Known() && !f.Type.IsResponse() {
			return printDecoded(cmd.OutOrStdout(), f, f.String()+" payload="+hex.EncodeToString(f.Payload))
		}

		resp, _, err := protocol.ParseResponse(data)
		if err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
		out, text := describeResponse(resp)
		return printDecoded(cmd.OutOrStdout(), out, text)
	},
}

type decodedResponse struct {
	*protocol.Response
	Decoded any    `json:"decoded,omitempty"`
	Error   string `json:"error,omitempty"`
}

// describeResponse interprets the payload of resp by message type
func describeResponse(resp *protocol.Response) (decodedResponse, string) {
	out := decodedResponse{Response: resp}
	text := resp.String()
	if v, err := resp.Decode(); err != nil {
		out.Error = err.Error()
		text += " error=" + err.Error()
	} else if v != nil {
		out.Decoded = v
		text += fmt.Sprintf(" decoded=%+v", v)
	}
	return out, text
}

var decodeStreamCmd = &cobra.Command{
	Use:   "stream [file]",
	Short: "Reassemble responses from captured UART notifications",
	Long: `Read UART notifications as hex, one per line, and feed them through the
same reassembler a live session uses. Responses split across notifications or
packed into one are reported individually, along with corrupt frames.

Reads stdin when no file is given. Blank lines and lines starting with # are
skipped.`,
	Example: `  probekit decode stream capture.txt
  probekit --format json decode stream < capture.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecodeStream,
}

func runDecodeStream(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open capture: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := cmd.OutOrStdout()
	p := ui.NewPrinter(out)
	decoder := protocol.NewDecoder()
	var lines, responses, corrupt int

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines++
		chunk, err := parseHex([]string{line})
		if err != nil {
			return fmt.Errorf("line %d: %w", lines, err)
		}

		resps, errs := decoder.Feed(chunk)
		for _, err := range errs {
			corrupt++
			if !jsonOutput() {
				p.Println(ui.FailureMarker + " " + err.Error())
			}
		}
		for _, resp := range resps {
			responses++
			v, text := describeResponse(resp)
			if jsonOutput() {
				if err := p.PrintJSON(v); err != nil {
					return err
				}
				continue
			}
			p.Println(ui.SuccessMarker + " " + text)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read capture: %w", err)
	}

	if jsonOutput() {
		return nil
	}
	summary := []ui.Param{
		{Key: "Notifications", Value: fmt.Sprint(lines)},
		{Key: "Responses", Value: fmt.Sprint(responses)},
		{Key: "Corrupt", Value: fmt.Sprint(corrupt)},
		{Key: "Leftover bytes", Value: fmt.Sprint(decoder.Buffered())},
	}
	if corrupt > 0 || decoder.Buffered() > 0 {
		p.PrintWarning("Stream decoded with problems", summary...)
		return nil
	}
	p.PrintSuccess("Stream decoded", summary...)
	return nil
}

// parseHex joins args and decodes them, ignoring separators
func parseHex(args []string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "-", "", "\n", "", "\t", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

// printDecoded prints the summary line then the full structure. JSON output
// omits the summary.
func printDecoded(w io.Writer, v any, text string) error {
	p := ui.NewPrinter(w)
	if !jsonOutput() {
		p.Println(ui.HeaderTitleStyle.UnsetPaddingLeft().Render(text))
	}
	return p.PrintJSON(v)
}
