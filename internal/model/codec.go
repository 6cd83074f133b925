package model

import (
	"encoding/json"
	"fmt"
)

// DecodeRedeemer reads a redeemer from its tagged JSON form: an "action"
// field naming the variant next to the variant's own fields.
//
//	{"action": "add_liquidity", "amount": "1000000"}
func DecodeRedeemer(data []byte) (Redeemer, error) {
	var tag struct {
		Action Action `json:"action"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}

	var r Redeemer
	var err error
	switch tag.Action {
	case ActionAddLiquidity:
		r, err = decodeAs[AddLiquidity](data)
	case ActionRemoveLiquidity:
		r, err = decodeAs[RemoveLiquidity](data)
	case ActionIncreasePosition:
		r, err = decodeAs[IncreasePosition](data)
	case ActionDecreasePosition:
		r, err = decodeAs[DecreasePosition](data)
	case ActionLiquidatePosition:
		r, err = decodeAs[LiquidatePosition](data)
	case ActionUpdateFees:
		r, err = decodeAs[UpdateFees](data)
	case ActionUpdateFundingRate:
		r, err = decodeAs[UpdateFundingRate](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, tag.Action)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag.Action, err)
	}
	return r, nil
}

// EncodeRedeemer writes r in the form DecodeRedeemer reads.
func EncodeRedeemer(r Redeemer) ([]byte, error) {
	fields, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(fields, &m); err != nil {
		return nil, err
	}
	action, _ := json.Marshal(r.Action())
	m["action"] = action
	return json.Marshal(m)
}

func decodeAs[T Redeemer](data []byte) (Redeemer, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
