package echonet

import "fmt"

// Object is a 3-byte ECHONET Lite object identifier (EOJ), held as
// 0xGGCCII (class group, class, instance).
type Object uint32

const (
	// SmartMeter 低圧スマート電力量メータ
	SmartMeter Object = 0x028801
	// HemsController コントローラ
	HemsController Object = 0x05FF01
)

// Bytes returns the on-wire big-endian form of the object id.
func (o Object) Bytes() [3]byte {
	return [3]byte{byte(o >> 16), byte(o >> 8), byte(o)}
}

// ObjectFromBytes decodes a 3-byte EOJ. Ids outside the known table are
// a parse error.
func ObjectFromBytes(b []byte) (Object, error) {
	if len(b) < 3 {
		return 0, ParseError("EOJ is shorter than 3 bytes")
	}
	o := Object(uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]))
	switch o {
	case SmartMeter, HemsController:
		return o, nil
	}
	return 0, ParseError(fmt.Sprintf("unknown ECHONET object id %06X", uint32(o)))
}

// Service is the ECHONET Lite service code (ESV).
type Service byte

const (
	ReadPropertyRequest                  Service = 0x62
	ReadPropertyFailResponse             Service = 0x52
	ReadPropertyResponse                 Service = 0x72
	PropertyNotification                 Service = 0x73
	PropertyNotificationResponseRequired Service = 0x74
	PropertyNotificationResponse         Service = 0x7A
)

// Valid reports whether s is a service this driver can represent.
func (s Service) Valid() bool {
	switch s {
	case ReadPropertyRequest, ReadPropertyFailResponse, ReadPropertyResponse,
		PropertyNotification, PropertyNotificationResponseRequired, PropertyNotificationResponse:
		return true
	}
	return false
}

// EPC constrains the per-class property code enums a Packet can carry.
// Decoding a code for which Valid reports false is a parse error, so a
// code path only ever sees the properties its packet type declares.
type EPC interface {
	~uint8
	Valid() bool
}

// SmartMeterProperty enumerates the low-voltage smart meter EPCs this
// driver reads.
type SmartMeterProperty uint8

const (
	// Coefficient 係数
	Coefficient SmartMeterProperty = 0xD3
	// NumberOfEffectiveDigitsCumulativeElectricEnergy 積算電力量有効桁数
	NumberOfEffectiveDigitsCumulativeElectricEnergy SmartMeterProperty = 0xD7
	// NormalDirectionCumulativeElectricEnergy 積算電力量計測値（正方向）
	NormalDirectionCumulativeElectricEnergy SmartMeterProperty = 0xE0
	// UnitForCumulativeElectricEnergy 積算電力量単位
	UnitForCumulativeElectricEnergy SmartMeterProperty = 0xE1
	// NormalDirectionCumulativeElectricEnergyLog1 積算電力量計測値履歴1（正方向）
	NormalDirectionCumulativeElectricEnergyLog1 SmartMeterProperty = 0xE2
	// InstantaneousElectricPower 瞬時電力計測値
	InstantaneousElectricPower SmartMeterProperty = 0xE7
	// InstantaneousCurrent 瞬時電流計測値
	InstantaneousCurrent SmartMeterProperty = 0xE8
)

func (p SmartMeterProperty) Valid() bool {
	switch p {
	case Coefficient, NumberOfEffectiveDigitsCumulativeElectricEnergy,
		NormalDirectionCumulativeElectricEnergy, UnitForCumulativeElectricEnergy,
		NormalDirectionCumulativeElectricEnergyLog1, InstantaneousElectricPower,
		InstantaneousCurrent:
		return true
	}
	return false
}

// SuperClassProperty enumerates the device-superclass EPCs shared by
// every ECHONET object class.
type SuperClassProperty uint8

const (
	// OperationStatus 動作状態
	OperationStatus SuperClassProperty = 0x80
	// StatusChangeAnnouncementPropertyMap 状変アナウンスプロパティマップ
	StatusChangeAnnouncementPropertyMap SuperClassProperty = 0x9D
	// SetPropertyMap Setプロパティマップ
	SetPropertyMap SuperClassProperty = 0x9E
	// GetPropertyMap Getプロパティマップ
	GetPropertyMap SuperClassProperty = 0x9F
)

func (p SuperClassProperty) Valid() bool {
	switch p {
	case OperationStatus, StatusChangeAnnouncementPropertyMap, SetPropertyMap, GetPropertyMap:
		return true
	}
	return false
}
