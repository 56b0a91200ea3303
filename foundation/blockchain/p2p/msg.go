package p2p

import (
	"encoding/json"
	"time"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/database"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/peer"
)

// MsgType identifies a frame on the wire.
type MsgType string

// The complete frame vocabulary. A frame that fails to decode tears the
// connection down; a frame of any other type is handed to the layer above.
const (
	TypeHandshake       MsgType = "HANDSHAKE"
	TypePeerDiscovery   MsgType = "PEER_DISCOVERY"
	TypeChainRequest    MsgType = "CHAIN_REQUEST"
	TypeChainResponse   MsgType = "CHAIN_RESPONSE"
	TypeBlock           MsgType = "BLOCK"
	TypeTransaction     MsgType = "TRANSACTION"
	TypeMempoolRequest  MsgType = "MEMPOOL_REQUEST"
	TypeMempoolResponse MsgType = "MEMPOOL_RESPONSE"
)

// Message is the envelope every frame travels in.
type Message struct {
	Type      MsgType         `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Sender    string          `json:"sender"`
	Timestamp int64           `json:"timestamp"`
}

// NewMessage constructs a frame from the specified payload.
func NewMessage(msgType MsgType, payload any, sender string) (Message, error) {
	msg := Message{
		Type:      msgType,
		Sender:    sender,
		Timestamp: time.Now().UnixMilli(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, err
		}
		msg.Payload = data
	}

	return msg, nil
}

// Decode unmarshals the payload into the specified value.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// =============================================================================

// HandshakePayload opens every connection, in both directions.
type HandshakePayload struct {
	NodeID           string `json:"node_id"`
	ListeningAddress string `json:"listening_address"`
}

// DiscoveryPayload advertises peers a node knows about.
type DiscoveryPayload struct {
	Peers []peer.Peer `json:"peers"`
}

// ChainResponsePayload carries the full chain.
type ChainResponsePayload struct {
	Chain []database.Block `json:"chain"`
}

// BlockPayload carries one freshly mined block.
type BlockPayload struct {
	Block database.Block `json:"block"`
}

// TransactionPayload carries one signed transaction.
type TransactionPayload struct {
	Transaction database.Tx `json:"transaction"`
}

// MempoolResponsePayload carries a node's pending transactions.
type MempoolResponsePayload struct {
	Transactions []database.Tx `json:"transactions"`
}
