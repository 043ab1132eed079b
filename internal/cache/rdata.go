package cache

import "github.com/kelanmoore/homedns/internal/message"

// rdataEqual reports whether two RDATA values carry identical content,
// used by Insert to decide whether a value already occupies a slot.
func rdataEqual(a, b message.RDATA) bool {
	if a.Type() != b.Type() {
		return false
	}
	switch av := a.(type) {
	case message.RDATA_A:
		return av.Addr.Equal(b.(message.RDATA_A).Addr)
	case message.RDATA_AAAA:
		return av.Addr.Equal(b.(message.RDATA_AAAA).Addr)
	case message.RDATA_Name:
		return av.Name.Equal(b.(message.RDATA_Name).Name)
	case message.RDATA_SOA:
		bv := b.(message.RDATA_SOA)
		return av.MName.Equal(bv.MName) && av.RName.Equal(bv.RName) &&
			av.Serial == bv.Serial && av.Refresh == bv.Refresh &&
			av.Retry == bv.Retry && av.Expire == bv.Expire && av.Minimum == bv.Minimum
	case message.RDATA_MX:
		bv := b.(message.RDATA_MX)
		return av.Preference == bv.Preference && av.Exchange.Equal(bv.Exchange)
	case message.RDATA_MINFO:
		bv := b.(message.RDATA_MINFO)
		return av.RMailbx.Equal(bv.RMailbx) && av.EMailbx.Equal(bv.EMailbx)
	case message.RDATA_HINFO:
		bv := b.(message.RDATA_HINFO)
		return av.CPU == bv.CPU && av.OS == bv.OS
	case message.RDATA_TXT:
		bv := b.(message.RDATA_TXT)
		if len(av.Strings) != len(bv.Strings) {
			return false
		}
		for i := range av.Strings {
			if av.Strings[i] != bv.Strings[i] {
				return false
			}
		}
		return true
	case message.RDATA_SRV:
		bv := b.(message.RDATA_SRV)
		return av.Priority == bv.Priority && av.Weight == bv.Weight && av.Port == bv.Port && av.Target.Equal(bv.Target)
	case message.RDATA_Unknown:
		bv := b.(message.RDATA_Unknown)
		if len(av.Octets) != len(bv.Octets) {
			return false
		}
		for i := range av.Octets {
			if av.Octets[i] != bv.Octets[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}
