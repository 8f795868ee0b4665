package metadata

// Reserved metadata keys. The RabbitMQ transport lifts KeyCorrelationID and
// KeyReplyTo into the AMQP message properties; other transports carry them
// as plain headers.
const (
	// KeyCorrelationID pairs an RPC request with its reply.
	KeyCorrelationID = "correlation_id"

	// KeyReplyTo names the routing key a reply must be published to. Its
	// presence is what marks an inbound message as an RPC request.
	KeyReplyTo = "reply_to"

	// KeyEnvelopeKind mirrors the envelope's event or rpc type for logging.
	KeyEnvelopeKind = "envelope_kind"

	// KeySourceService records which service published the message.
	KeySourceService = "source_service"

	// KeyRPCError is set on a null reply when the serving handler failed.
	KeyRPCError = "rpc_error"
)

// Metadata represents the headers carried alongside a message.
type Metadata map[string]string

func (m Metadata) cloneWithExtra(extra int) Metadata {
	size := len(m) + extra
	if size <= 0 {
		return Metadata{}
	}

	cloned := make(Metadata, size)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a cloned metadata map containing the supplied entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

func (m Metadata) CorrelationID() string { return m[KeyCorrelationID] }

func (m Metadata) ReplyTo() string { return m[KeyReplyTo] }

// IsRPCRequest reports whether the message expects a reply.
func (m Metadata) IsRPCRequest() bool {
	return m[KeyReplyTo] != "" && m[KeyCorrelationID] != ""
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}
