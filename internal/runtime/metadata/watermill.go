package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// FromWatermill copies Watermill headers into a Metadata map.
func FromWatermill(md message.Metadata) Metadata {
	result := make(Metadata, len(md))
	for k, v := range md {
		result[k] = v
	}
	return result
}

// ToWatermill copies md into a fresh Watermill header map.
func ToWatermill(md Metadata) message.Metadata {
	wm := make(message.Metadata, len(md))
	for k, v := range md {
		wm[k] = v
	}
	return wm
}

// Apply merges md into the headers of msg, overwriting existing keys.
func Apply(msg *message.Message, md Metadata) {
	if msg.Metadata == nil {
		msg.Metadata = make(message.Metadata, len(md))
	}
	for k, v := range md {
		msg.Metadata.Set(k, v)
	}
}
