package exit

import (
	"encoding/json"

	"matchbook/domain/market"
)

const eventVersion = 1

// Event is the published form of a settlement event.
type Event struct {
	V            int    `json:"v"`
	Type         string `json:"type"`
	Seq          uint64 `json:"seq"`
	Index        uint16 `json:"index"`
	Market       string `json:"market"`
	Side         string `json:"side"`
	Maker        string `json:"maker"`
	Taker        string `json:"taker"`
	CoinQty      uint64 `json:"coin_qty"`
	PcQty        uint64 `json:"pc_qty"`
	MakerOrderID uint64 `json:"maker_order_id"`
}

func NewEvent(key Key, mkt string, ev market.Event) Event {
	return Event{
		V:            eventVersion,
		Type:         ev.Type.String(),
		Seq:          key.Seq,
		Index:        key.Index,
		Market:       mkt,
		Side:         ev.Side.String(),
		Maker:        ev.Maker.String(),
		Taker:        ev.Taker.String(),
		CoinQty:      ev.CoinQty,
		PcQty:        ev.PcQty,
		MakerOrderID: ev.MakerOrderID,
	}
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalEvent(b []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(b, &e)
	return e, err
}
