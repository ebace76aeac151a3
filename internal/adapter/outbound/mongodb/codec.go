package mongodb

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

var uuidType = reflect.TypeOf(uuid.UUID{})

// uuidEncodeValue writes a uuid.UUID as BSON binary subtype 4.
func uuidEncodeValue(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != uuidType {
		return bsoncodec.ValueEncoderError{Name: "uuidEncodeValue", Types: []reflect.Type{uuidType}, Received: val}
	}
	id := val.Interface().(uuid.UUID)
	return vw.WriteBinaryWithSubtype(id[:], bsontype.BinaryUUID)
}

func uuidDecodeValue(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != uuidType {
		return bsoncodec.ValueDecoderError{Name: "uuidDecodeValue", Types: []reflect.Type{uuidType}, Received: val}
	}

	var id uuid.UUID
	switch t := vr.Type(); t {
	case bsontype.Binary:
		data, subtype, err := vr.ReadBinary()
		if err != nil {
			return err
		}
		if subtype != bsontype.BinaryUUID && subtype != bsontype.BinaryUUIDOld {
			return fmt.Errorf("unsupported binary subtype %#x for uuid", subtype)
		}
		id, err = uuid.FromBytes(data)
		if err != nil {
			return err
		}
	case bsontype.String:
		s, err := vr.ReadString()
		if err != nil {
			return err
		}
		id, err = uuid.Parse(s)
		if err != nil {
			return err
		}
	case bsontype.Null:
		if err := vr.ReadNull(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cannot decode %v into a uuid", t)
	}

	val.Set(reflect.ValueOf(id))
	return nil
}

// NewRegistry returns the default BSON registry extended with a uuid.UUID codec.
func NewRegistry() *bsoncodec.Registry {
	reg := bson.NewRegistry()
	reg.RegisterTypeEncoder(uuidType, bsoncodec.ValueEncoderFunc(uuidEncodeValue))
	reg.RegisterTypeDecoder(uuidType, bsoncodec.ValueDecoderFunc(uuidDecodeValue))
	return reg
}
