// Command receiver drives a Receiver endpoint end to end: it opens a
// raw-IP connection to the sender, runs the synchronous receive/ack loop
// until the final short segment has been delivered and acknowledged, and
// writes the reassembled stream to an output file.
package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/alksarioglou/reliable-transport-tcp-networking/chunkfile"
	"github.com/alksarioglou/reliable-transport-tcp-networking/loss"
	"github.com/alksarioglou/reliable-transport-tcp-networking/netio"
	"github.com/alksarioglou/reliable-transport-tcp-networking/receiver"
	"github.com/alksarioglou/reliable-transport-tcp-networking/seq"
	"github.com/alksarioglou/reliable-transport-tcp-networking/wire"
)

// idleReadTimeout bounds each Recv call; on expiry the loop simply waits
// again. It has no protocol meaning (the receiver has no
// retransmission timer of its own, per spec.md §4.3 — only the sender
// does).
const idleReadTimeout = 2 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var iface string

	cmd := &cobra.Command{
		Use:   "receiver receiver_IP sender_IP n_bits output_file window_size p_data p_ack",
		Short: "Receive a file reliably from an unreliable raw-IP datagram service",
		Args:  cobra.ExactArgs(7),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args, iface)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&iface, "interface", "", "network interface to bind the raw socket to")
	return cmd
}

func run(args []string, iface string) error {
	receiverIP := net.ParseIP(args[0])
	senderIP := net.ParseIP(args[1])
	if receiverIP == nil || senderIP == nil {
		return fmt.Errorf("malformed input: receiver_IP/sender_IP must be valid IPv4 addresses")
	}
	nBits, err := parseUint8(args[2])
	if err != nil {
		return fmt.Errorf("malformed input: n_bits: %w", err)
	}
	outputFile := args[3]
	windowSize, err := parseInt(args[4])
	if err != nil {
		return fmt.Errorf("malformed input: window_size: %w", err)
	}
	pData, err := strconv.ParseFloat(args[5], 64)
	if err != nil || pData < 0 || pData >= 1 {
		return fmt.Errorf("malformed input: p_data must be a float in [0, 1)")
	}
	pAck, err := strconv.ParseFloat(args[6], 64)
	if err != nil || pAck < 0 || pAck >= 1 {
		return fmt.Errorf("malformed input: p_ack must be a float in [0, 1)")
	}

	space, err := seq.NewSpace(nBits)
	if err != nil {
		return fmt.Errorf("malformed input: %w", err)
	}
	if windowSize <= 0 || windowSize > space.M() {
		return fmt.Errorf("malformed input: window_size must be in [1, 2^n_bits]")
	}

	out, err := chunkfile.NewAppender(outputFile)
	if err != nil {
		return fmt.Errorf("malformed input: %w", err)
	}
	defer out.Close()

	rcv := receiver.New(space, windowSize, out, loss.NewGate(pData, seedFrom(args)), loss.NewGate(pAck, seedFrom(args)+1))
	log := slog.Default()
	rcv.SetLogger(log)

	conn, err := netio.Dial(receiverIP, senderIP, iface)
	if err != nil {
		return fmt.Errorf("netio: %w", err)
	}
	defer conn.Close()

	return loop(rcv, conn, log)
}

func loop(rcv *receiver.Receiver, conn *netio.Conn, log *slog.Logger) error {
	var buf [64 + 15]byte
	for !rcv.Done() {
		if err := conn.SetReadDeadline(time.Now().Add(idleReadTimeout)); err != nil {
			return fmt.Errorf("netio: %w", err)
		}
		n, err := conn.Recv(buf[:])
		switch {
		case netio.IsTimeout(err):
			continue
		case err != nil:
			return fmt.Errorf("netio: %w", err)
		}

		seg, err := wire.Decode(buf[:n])
		if err != nil {
			log.Debug("rcv:malformed-segment", slog.String("err", err.Error()))
			continue
		}

		ack, send := rcv.Step(seg)
		if !send {
			continue
		}
		var out [64 + 15]byte
		m, err := wire.Encode(out[:], ack)
		if err != nil {
			return fmt.Errorf("wire: %w", err)
		}
		if err := conn.Send(out[:m]); err != nil {
			return fmt.Errorf("netio: %w", err)
		}
	}
	log.Info("rcv:exit")
	return nil
}

// seedFrom derives a deterministic loss-gate seed from the CLI arguments
// so repeated invocations with the same arguments reproduce the same drop
// sequence (spec.md §9: "given seed and inputs, outputs are identical").
// A fixed seed independent of wall-clock time is what makes the loss
// gates' behavior a property of the arguments, not of when the process
// happened to run.
func seedFrom(args []string) uint32 {
	var h uint32 = 2166136261 // FNV-1a offset basis
	for _, a := range args {
		for i := 0; i < len(a); i++ {
			h ^= uint32(a[i])
			h *= 16777619
		}
	}
	return h
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
