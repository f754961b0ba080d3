package sheet

import "rollcall/internal/core/normalize"

// Canonical field keys produced by header normalization
const (
	FieldIDNumber           = "id_number"
	FieldFirstName          = "first_name"
	FieldSurname            = "surname"
	FieldGender             = "gender"
	FieldRace               = "race"
	FieldLanguage           = "language"
	FieldOccupation         = "occupation"
	FieldQualification      = "qualification"
	FieldCellNumber         = "cell_number"
	FieldEmail              = "email"
	FieldAddress            = "address"
	FieldWardCode           = "ward_code"
	FieldVotingDistrictCode = "voting_district_code"
	FieldMembershipType     = "membership_type"
	FieldMembershipStatus   = "membership_status"
	FieldAmount             = "amount"
	FieldDateJoined         = "date_joined"
	FieldLastPaymentDate    = "last_payment_date"
	FieldExpiryDate         = "expiry_date"
)

// aliases maps a normalized header spelling to its canonical field
var aliases = buildAliases(map[string][]string{
	FieldIDNumber:           {"idnumber", "id_no", "id_num", "identity_number", "sa_id", "sa_id_number", "id"},
	FieldFirstName:          {"firstname", "first_names", "name", "names", "given_name"},
	FieldSurname:            {"last_name", "lastname", "family_name"},
	FieldGender:             {"sex"},
	FieldRace:               {"population_group"},
	FieldLanguage:           {"home_language", "lang"},
	FieldOccupation:         {"profession", "job"},
	FieldQualification:      {"highest_qualification", "education"},
	FieldCellNumber:         {"cell", "cellphone", "cell_no", "mobile", "mobile_number", "phone", "contact_number"},
	FieldEmail:              {"e_mail", "email_address"},
	FieldAddress:            {"residential_address", "physical_address", "street_address"},
	FieldWardCode:           {"ward", "ward_number", "ward_no"},
	FieldVotingDistrictCode: {"vd", "vd_code", "vd_number", "voting_district", "voting_district_number"},
	FieldMembershipType:     {"member_type", "type"},
	FieldMembershipStatus:   {"member_status", "status"},
	FieldAmount:             {"amount_paid", "membership_amount", "fee"},
	FieldDateJoined:         {"join_date", "joined", "date_of_joining", "joining_date"},
	FieldLastPaymentDate:    {"last_payment", "payment_date", "date_of_last_payment"},
	FieldExpiryDate:         {"expiry", "expires", "membership_expiry", "expiry_date_membership"},
})

func buildAliases(in map[string][]string) map[string]string {
	out := make(map[string]string, len(in)*6)
	for canon, alts := range in {
		out[canon] = canon
		for _, a := range alts {
			out[normalize.Key(a)] = canon
		}
	}
	return out
}

// Canonical maps a raw header cell to its canonical field and reports whether it is known.
// Unknown headers come back normalized so they can key Record.Extra.
func Canonical(header string) (string, bool) {
	k := normalize.Key(header)
	if c, ok := aliases[k]; ok {
		return c, true
	}
	return k, false
}
