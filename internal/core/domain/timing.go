package domain

// TimingMetrics is the phase breakdown of one probe, in non-negative integer
// milliseconds. TLSHandshake is zero for cleartext targets. Total covers the
// interval from DNS start to end-of-body (or until the error).
type TimingMetrics struct {
	DNSLookup       int64 `json:"dns_lookup"`
	TCPConnect      int64 `json:"tcp_connect"`
	TLSHandshake    int64 `json:"tls_handshake"`
	TTFB            int64 `json:"ttfb"`
	ContentDownload int64 `json:"content_download"`
	Total           int64 `json:"total"`
}

// PhaseSum adds the individual phases; Total should match within rounding
// tolerance when a probe ran to completion.
func (t TimingMetrics) PhaseSum() int64 {
	return t.DNSLookup + t.TCPConnect + t.TLSHandshake + t.TTFB + t.ContentDownload
}

// Clamp zeroes any negative field. Monotonic clock deltas cannot go negative,
// but timings assembled from partial trace callbacks can.
func (t *TimingMetrics) Clamp() {
	for _, f := range []*int64{&t.DNSLookup, &t.TCPConnect, &t.TLSHandshake, &t.TTFB, &t.ContentDownload, &t.Total} {
		if *f < 0 {
			*f = 0
		}
	}
}
