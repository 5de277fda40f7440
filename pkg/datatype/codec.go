package datatype

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode uses core deterministic encoding: the same content always encodes
// to the same bytes, hence to the same payload address.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("datatype: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("datatype: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(data []byte, v interface{}) error {
	return decMode.Unmarshal(data, v)
}
