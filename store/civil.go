package store

import (
	"reflect"

	"github.com/golang-sql/civil"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
)

// Date defines a local date value that is stored as a plain date string.
type Date = civil.Date

func init() {
	var dateType = reflect.TypeOf(Date{})
	Extend(func(builder *bsoncodec.RegistryBuilder) {
		builder.RegisterTypeEncoder(dateType, bsoncodec.ValueEncoderFunc(func(ec bsoncodec.EncodeContext, w bsonrw.ValueWriter, v reflect.Value) error {
			return w.WriteString(v.Interface().(Date).String())
		}))
		builder.RegisterTypeDecoder(dateType, bsoncodec.ValueDecoderFunc(func(dc bsoncodec.DecodeContext, r bsonrw.ValueReader, v reflect.Value) error {
			str, err := r.ReadString()
			if err != nil {
				return err
			}
			if str == "0000-00-00" {
				v.Set(reflect.ValueOf(Date{}))
				return nil
			}
			date, err := civil.ParseDate(str)
			if err != nil {
				return err
			}
			v.Set(reflect.ValueOf(date))
			return nil
		}))
	})
}
