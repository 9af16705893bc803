// Command sender drives a Sender endpoint end to end: it chunks an input
// file, opens a raw-IP connection to the receiver, and runs the
// synchronous send/retransmit event loop until every chunk has been
// cumulatively acknowledged.
package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alksarioglou/reliable-transport-tcp-networking/chunkfile"
	"github.com/alksarioglou/reliable-transport-tcp-networking/netio"
	"github.com/alksarioglou/reliable-transport-tcp-networking/sender"
	"github.com/alksarioglou/reliable-transport-tcp-networking/seq"
	"github.com/alksarioglou/reliable-transport-tcp-networking/wire"
)

// retransmitTimeout is the one-shot timer period armed after every send:
// T = 1 second of no ack reception, per spec.md §4.4.
const retransmitTimeout = 1 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var iface string

	cmd := &cobra.Command{
		Use:   "sender sender_IP receiver_IP n_bits input_file window_size Q_SR Q_SACK Q_CC",
		Short: "Send a file reliably over an unreliable raw-IP datagram service",
		Args:  cobra.ExactArgs(8),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args, iface)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&iface, "interface", "", "network interface to bind the raw socket to")
	return cmd
}

func run(args []string, iface string) error {
	senderIP := net.ParseIP(args[0])
	receiverIP := net.ParseIP(args[1])
	if senderIP == nil || receiverIP == nil {
		return fmt.Errorf("malformed input: sender_IP/receiver_IP must be valid IPv4 addresses")
	}
	nBits, err := parseUint8(args[2])
	if err != nil {
		return fmt.Errorf("malformed input: n_bits: %w", err)
	}
	inputFile := args[3]
	windowSize, err := parseInt(args[4])
	if err != nil {
		return fmt.Errorf("malformed input: window_size: %w", err)
	}
	qSR, err := parseBit(args[5])
	if err != nil {
		return fmt.Errorf("malformed input: Q_SR: %w", err)
	}
	qSACK, err := parseBit(args[6])
	if err != nil {
		return fmt.Errorf("malformed input: Q_SACK: %w", err)
	}
	qCC, err := parseBit(args[7])
	if err != nil {
		return fmt.Errorf("malformed input: Q_CC: %w", err)
	}

	space, err := seq.NewSpace(nBits)
	if err != nil {
		return fmt.Errorf("malformed input: %w", err)
	}
	if windowSize <= 0 || windowSize >= space.M() {
		return fmt.Errorf("malformed input: window_size must be in [1, 2^n_bits)")
	}

	mode, err := sender.ModeFromFlags(qSR, qSACK)
	if err != nil {
		return fmt.Errorf("malformed input: %w", err)
	}

	chunks, err := chunkfile.Chunks(inputFile, wire.ChunkSize)
	if err != nil {
		return fmt.Errorf("malformed input: %w", err)
	}

	snd, err := sender.New(space, windowSize, mode, qCC, chunks)
	if err != nil {
		return fmt.Errorf("malformed input: %w", err)
	}
	log := slog.Default()
	snd.SetLogger(log)

	conn, err := netio.Dial(senderIP, receiverIP, iface)
	if err != nil {
		return fmt.Errorf("netio: %w", err)
	}
	defer conn.Close()

	return loop(snd, conn, log)
}

func loop(snd *sender.Sender, conn *netio.Conn, log *slog.Logger) error {
	send := func(segs []wire.Segment) error {
		var buf [64 + 15]byte
		for _, seg := range segs {
			n, err := wire.Encode(buf[:], seg)
			if err != nil {
				return fmt.Errorf("wire: %w", err)
			}
			if err := conn.Send(buf[:n]); err != nil {
				return fmt.Errorf("netio: %w", err)
			}
		}
		return nil
	}

	if err := send(snd.FillWindow()); err != nil {
		return err
	}

	var buf [64 + 15]byte
	for !snd.Done() {
		if err := conn.SetReadDeadline(time.Now().Add(retransmitTimeout)); err != nil {
			return fmt.Errorf("netio: %w", err)
		}
		n, err := conn.Recv(buf[:])
		switch {
		case netio.IsTimeout(err):
			if err := send(snd.OnTimeout()); err != nil {
				return err
			}
			continue
		case err != nil:
			return fmt.Errorf("netio: %w", err)
		}

		ack, err := wire.Decode(buf[:n])
		if err != nil {
			log.Debug("snd:malformed-segment", slog.String("err", err.Error()))
			continue
		}
		if err := send(snd.OnAck(ack)); err != nil {
			return err
		}
		if err := send(snd.FillWindow()); err != nil {
			return err
		}
	}
	stats := snd.Stats()
	log.Info("snd:exit", slog.Int("sent", stats.Sent),
		slog.Int("timeout_retransmits", stats.TimeoutRetransmits),
		slog.Int("fast_retransmits", stats.FastRetransmits),
		slog.Int("sack_retransmits", stats.SACKRetransmits))
	return nil
}

func parseUint8(s string) (uint8, error) {
	v, err := parseInt(s)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("%q out of uint8 range", s)
	}
	return uint8(v), nil
}

func parseInt(s string) (int, error) {
	var v int
	_, err := fmt.Sscanf(s, "%d", &v)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return v, nil
}

func parseBit(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("%q must be 0 or 1", s)
	}
}
