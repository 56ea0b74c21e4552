package wasmdeploy

import (
	"fmt"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
)

// FindAttributes returns every value of key across events of eventType, in
// emission order.
func FindAttributes(events []abci.Event, eventType, key string) []string {
	var values []string
	for _, ev := range events {
		if ev.Type != eventType {
			continue
		}
		for _, attr := range ev.Attributes {
			if attr.Key == key {
				values = append(values, attr.Value)
			}
		}
	}
	return values
}

// FindAttribute returns the first value of key in events of eventType.
func FindAttribute(events []abci.Event, eventType, key string) (string, error) {
	return FindAttributeAt(events, eventType, key, 0)
}

// FindAttributeAt returns the index-th value of key in events of eventType.
func FindAttributeAt(events []abci.Event, eventType, key string, index int) (string, error) {
	values := FindAttributes(events, eventType, key)
	if index < 0 || index >= len(values) {
		return "", fmt.Errorf("%w: %s.%s[%d]", ErrAttributeNotFound, eventType, key, index)
	}
	return values[index], nil
}

// CodeIDFromEvents extracts the code ID from a MsgStoreCode result.
func CodeIDFromEvents(events []abci.Event) (uint64, error) {
	raw, err := FindAttribute(events, EventTypeStoreCode, AttributeKeyCodeID)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse code id %q: %w", raw, err)
	}
	return id, nil
}

// ContractAddressFromEvents extracts the new contract address from a
// MsgInstantiateContract result.
func ContractAddressFromEvents(events []abci.Event) (string, error) {
	return FindAttribute(events, EventTypeInstantiate, AttributeKeyContractAddress)
}
