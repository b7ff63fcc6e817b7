package protocol

import (
	"encoding/binary"
	"net/netip"
)

// IANAOption is an identity association for non-temporary addresses.
type IANAOption struct {
	IAID [4]byte
	T1   uint32
	T2   uint32
	Opts []Option
}

func (o *IANAOption) Code() OptionCode { return OptionIANA }

func (o *IANAOption) Options() []Option { return o.Opts }

func (o *IANAOption) Constraints() Constraints { return iaNAConstraints }

func (o *IANAOption) Option(code OptionCode) Option { return FindOption(o.Opts, code) }

func (o *IANAOption) AddOption(opt Option) { o.Opts = append(o.Opts, opt) }

func (o *IANAOption) Validate() error {
	if err := validateTimers("IA_NA", o.T1, o.T2); err != nil {
		return err
	}
	return ValidateContainment("IA_NA", iaNAConstraints, o.Opts)
}

func (o *IANAOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	opts, err := marshalOptions(o.Opts)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 12, 12+len(opts))
	copy(payload[0:4], o.IAID[:])
	binary.BigEndian.PutUint32(payload[4:8], o.T1)
	binary.BigEndian.PutUint32(payload[8:12], o.T2)
	return encodeOption(OptionIANA, append(payload, opts...))
}

func (o *IANAOption) Unmarshal(r *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionIANA, -1)
	if err != nil {
		return 0, err
	}
	if len(payload) < 12 {
		return 0, shortPayload("IA_NA", len(payload), 12)
	}
	copy(o.IAID[:], payload[0:4])
	o.T1 = binary.BigEndian.Uint32(payload[4:8])
	o.T2 = binary.BigEndian.Uint32(payload[8:12])
	if o.Opts, err = r.parseOptions(payload[12:]); err != nil {
		return 0, err
	}
	return optionHeaderLen + len(payload), nil
}

var iaNAConstraints = Constraints{
	AnyNumber(OptionIAAddress),
	AtMost(1, OptionStatusCode),
	AtMost(0, OptionIAPrefix),
	AtMost(0, GroupIA...),
	AnyNumber(),
}

// IATAOption is an identity association for temporary addresses.
type IATAOption struct {
	IAID [4]byte
	Opts []Option
}

func (o *IATAOption) Code() OptionCode { return OptionIATA }

func (o *IATAOption) Options() []Option { return o.Opts }

func (o *IATAOption) Constraints() Constraints { return iaTAConstraints }

func (o *IATAOption) Option(code OptionCode) Option { return FindOption(o.Opts, code) }

func (o *IATAOption) AddOption(opt Option) { o.Opts = append(o.Opts, opt) }

func (o *IATAOption) Validate() error {
	return ValidateContainment("IA_TA", iaTAConstraints, o.Opts)
}

func (o *IATAOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	opts, err := marshalOptions(o.Opts)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 4, 4+len(opts))
	copy(payload, o.IAID[:])
	return encodeOption(OptionIATA, append(payload, opts...))
}

func (o *IATAOption) Unmarshal(r *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionIATA, -1)
	if err != nil {
		return 0, err
	}
	if len(payload) < 4 {
		return 0, shortPayload("IA_TA", len(payload), 4)
	}
	copy(o.IAID[:], payload[0:4])
	if o.Opts, err = r.parseOptions(payload[4:]); err != nil {
		return 0, err
	}
	return optionHeaderLen + len(payload), nil
}

var iaTAConstraints = iaNAConstraints

// IAAddressOption is an address bound inside an IA_NA or IA_TA.
type IAAddressOption struct {
	Address           netip.Addr
	PreferredLifetime uint32
	ValidLifetime     uint32
	Opts              []Option
}

func (o *IAAddressOption) Code() OptionCode { return OptionIAAddress }

func (o *IAAddressOption) Options() []Option { return o.Opts }

func (o *IAAddressOption) Constraints() Constraints { return leaseConstraints }

func (o *IAAddressOption) Validate() error {
	if err := validateNonMulticast("IAAddress", o.Address); err != nil {
		return err
	}
	if o.PreferredLifetime > o.ValidLifetime {
		return invalid("IAAddress", ErrOutOfRange, "preferred lifetime %d exceeds valid lifetime %d", o.PreferredLifetime, o.ValidLifetime)
	}
	return ValidateContainment("IAAddress", leaseConstraints, o.Opts)
}

func (o *IAAddressOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	opts, err := marshalOptions(o.Opts)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, 24+len(opts))
	payload = appendAddr(payload, o.Address)
	payload = binary.BigEndian.AppendUint32(payload, o.PreferredLifetime)
	payload = binary.BigEndian.AppendUint32(payload, o.ValidLifetime)
	return encodeOption(OptionIAAddress, append(payload, opts...))
}

func (o *IAAddressOption) Unmarshal(r *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionIAAddress, -1)
	if err != nil {
		return 0, err
	}
	if len(payload) < 24 {
		return 0, shortPayload("IAAddress", len(payload), 24)
	}
	o.Address = readAddr(payload[0:16])
	o.PreferredLifetime = binary.BigEndian.Uint32(payload[16:20])
	o.ValidLifetime = binary.BigEndian.Uint32(payload[20:24])
	if o.Opts, err = r.parseOptions(payload[24:]); err != nil {
		return 0, err
	}
	return optionHeaderLen + len(payload), nil
}

// IAPDOption is an identity association for delegated prefixes.
type IAPDOption struct {
	IAID [4]byte
	T1   uint32
	T2   uint32
	Opts []Option
}

func (o *IAPDOption) Code() OptionCode { return OptionIAPD }

func (o *IAPDOption) Options() []Option { return o.Opts }

func (o *IAPDOption) Constraints() Constraints { return iaPDConstraints }

func (o *IAPDOption) Option(code OptionCode) Option { return FindOption(o.Opts, code) }

func (o *IAPDOption) AddOption(opt Option) { o.Opts = append(o.Opts, opt) }

func (o *IAPDOption) Validate() error {
	if err := validateTimers("IA_PD", o.T1, o.T2); err != nil {
		return err
	}
	return ValidateContainment("IA_PD", iaPDConstraints, o.Opts)
}

func (o *IAPDOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	opts, err := marshalOptions(o.Opts)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 12, 12+len(opts))
	copy(payload[0:4], o.IAID[:])
	binary.BigEndian.PutUint32(payload[4:8], o.T1)
	binary.BigEndian.PutUint32(payload[8:12], o.T2)
	return encodeOption(OptionIAPD, append(payload, opts...))
}

func (o *IAPDOption) Unmarshal(r *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionIAPD, -1)
	if err != nil {
		return 0, err
	}
	if len(payload) < 12 {
		return 0, shortPayload("IA_PD", len(payload), 12)
	}
	copy(o.IAID[:], payload[0:4])
	o.T1 = binary.BigEndian.Uint32(payload[4:8])
	o.T2 = binary.BigEndian.Uint32(payload[8:12])
	if o.Opts, err = r.parseOptions(payload[12:]); err != nil {
		return 0, err
	}
	return optionHeaderLen + len(payload), nil
}

var iaPDConstraints = Constraints{
	AnyNumber(OptionIAPrefix),
	AtMost(1, OptionStatusCode),
	AtMost(0, OptionIAAddress),
	AtMost(0, GroupIA...),
	AnyNumber(),
}

// IAPrefixOption is a delegated prefix inside an IA_PD. Unlike the MAP
// options, the prefix always occupies 16 bytes on the wire.
type IAPrefixOption struct {
	PreferredLifetime uint32
	ValidLifetime     uint32
	Prefix            netip.Prefix
	Opts              []Option
}

func (o *IAPrefixOption) Code() OptionCode { return OptionIAPrefix }

func (o *IAPrefixOption) Options() []Option { return o.Opts }

func (o *IAPrefixOption) Constraints() Constraints { return leaseConstraints }

func (o *IAPrefixOption) Validate() error {
	if !o.Prefix.IsValid() {
		return invalid("IAPrefix", ErrInvalidValue, "invalid prefix %v", o.Prefix)
	}
	if err := validateNonMulticast("IAPrefix", o.Prefix.Addr()); err != nil {
		return err
	}
	if o.PreferredLifetime > o.ValidLifetime {
		return invalid("IAPrefix", ErrOutOfRange, "preferred lifetime %d exceeds valid lifetime %d", o.PreferredLifetime, o.ValidLifetime)
	}
	return ValidateContainment("IAPrefix", leaseConstraints, o.Opts)
}

func (o *IAPrefixOption) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	opts, err := marshalOptions(o.Opts)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, 25+len(opts))
	payload = binary.BigEndian.AppendUint32(payload, o.PreferredLifetime)
	payload = binary.BigEndian.AppendUint32(payload, o.ValidLifetime)
	payload = append(payload, byte(o.Prefix.Bits()))
	payload = appendAddr(payload, o.Prefix.Addr())
	return encodeOption(OptionIAPrefix, append(payload, opts...))
}

func (o *IAPrefixOption) Unmarshal(r *Registry, buf []byte) (int, error) {
	payload, err := parseOptionHeader(buf, OptionIAPrefix, -1)
	if err != nil {
		return 0, err
	}
	if len(payload) < 25 {
		return 0, shortPayload("IAPrefix", len(payload), 25)
	}
	o.PreferredLifetime = binary.BigEndian.Uint32(payload[0:4])
	o.ValidLifetime = binary.BigEndian.Uint32(payload[4:8])
	bits := int(payload[8])
	if bits > 128 {
		return 0, invalid("IAPrefix", ErrOutOfRange, "prefix length %d", bits)
	}
	o.Prefix = netip.PrefixFrom(readAddr(payload[9:25]), bits)
	if o.Opts, err = r.parseOptions(payload[25:]); err != nil {
		return 0, err
	}
	return optionHeaderLen + len(payload), nil
}

var leaseConstraints = Constraints{
	AtMost(1, OptionStatusCode),
	AtMost(0, GroupIA...),
	AtMost(0, OptionIAAddress, OptionIAPrefix),
	AnyNumber(),
}

func validateTimers(element string, t1, t2 uint32) error {
	if t1 > 0 && t2 > 0 && t1 > t2 {
		return invalid(element, ErrOutOfRange, "T1 %d exceeds T2 %d", t1, t2)
	}
	return nil
}

// ShortestPreferredLifetime returns the smallest preferred lifetime among
// the address or prefix options in opts. ok is false when there are none.
func ShortestPreferredLifetime(opts []Option) (lifetime uint32, ok bool) {
	for _, opt := range opts {
		var pl uint32
		switch v := opt.(type) {
		case *IAAddressOption:
			pl = v.PreferredLifetime
		case *IAPrefixOption:
			pl = v.PreferredLifetime
		default:
			continue
		}
		if !ok || pl < lifetime {
			lifetime = pl
			ok = true
		}
	}
	return lifetime, ok
}

// IAID returns the identity association id of an IA_NA, IA_TA or IA_PD.
func IAID(opt Option) ([4]byte, bool) {
	switch v := opt.(type) {
	case *IANAOption:
		return v.IAID, true
	case *IATAOption:
		return v.IAID, true
	case *IAPDOption:
		return v.IAID, true
	}
	return [4]byte{}, false
}
