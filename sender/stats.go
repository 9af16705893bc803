package sender

// Stats is a point-in-time snapshot of the sender's retransmission
// counters. It changes no sender behavior; it is purely an observability
// surface the process driver can log at exit, supplementing the counters
// original_source's GBNSender tracked for its (out-of-scope) plotting
// script.
type Stats struct {
	Sent               int
	TimeoutRetransmits int
	FastRetransmits    int
	SACKRetransmits    int
}
