package domain

// Variations maps common spellings to the stored label per table. Keys are
// compared after folding, so case and accents do not matter here.
var Variations = map[Table]map[string]string{
	Gender: {
		"m":  "Male", "man": "Male", "boy": "Male", "male": "Male", "mr": "Male", "mnr": "Male",
		"f":  "Female", "woman": "Female", "girl": "Female", "female": "Female", "fem": "Female",
		"ms": "Female", "mrs": "Female", "miss": "Female", "mev": "Female",
	},
	Race: {
		"black":    "African", "african": "African", "black african": "African",
		"coloured": "Coloured", "colored": "Coloured",
		"indian":   "Indian", "asian": "Indian", "indian asian": "Indian",
		"white":    "White", "caucasian": "White",
	},
	Language: {
		"zulu":    "isiZulu", "isizulu": "isiZulu",
		"xhosa":   "isiXhosa", "isixhosa": "isiXhosa",
		"ndebele": "isiNdebele", "isindebele": "isiNdebele",
		"swati":   "siSwati", "siswati": "siSwati", "swazi": "siSwati",
		"sotho":   "Sesotho", "sesotho": "Sesotho", "south sotho": "Sesotho", "southern sotho": "Sesotho",
		"pedi":    "Sepedi", "sepedi": "Sepedi", "northern sotho": "Sepedi", "sesotho sa leboa": "Sepedi",
		"tswana":  "Setswana", "setswana": "Setswana",
		"venda":   "Tshivenda", "tshivenda": "Tshivenda", "tshivenda venda": "Tshivenda",
		"tsonga":  "Xitsonga", "xitsonga": "Xitsonga", "shangaan": "Xitsonga",
		"afr":     "Afrikaans", "afrikaans": "Afrikaans",
		"eng":     "English", "english": "English",
	},
	Citizenship: {
		"citizen":            "South African Citizen", "sa citizen": "South African Citizen",
		"south african":      "South African Citizen", "rsa": "South African Citizen",
		"permanent resident": "Permanent Resident", "resident": "Permanent Resident", "pr": "Permanent Resident",
	},
	Qualification: {
		"matric":  "Grade 12", "grade 12": "Grade 12", "std 10": "Grade 12", "nsc": "Grade 12",
		"degree":  "Bachelor's Degree", "bachelors": "Bachelor's Degree", "ba": "Bachelor's Degree",
		"bsc":     "Bachelor's Degree", "bcom": "Bachelor's Degree",
		"diploma": "Diploma", "national diploma": "Diploma",
		"none":    "No Schooling", "no schooling": "No Schooling",
	},
	Occupation: {
		"unemployed":    "Unemployed", "none": "Unemployed", "jobless": "Unemployed",
		"student":       "Student", "learner": "Student", "scholar": "Student",
		"pensioner":     "Pensioner", "retired": "Pensioner",
		"self employed": "Self Employed", "own business": "Self Employed",
	},
	MembershipType: {
		"new": "New", "renewal": "Renewal", "renew": "Renewal", "re new": "Renewal",
	},
	MembershipStatus: {
		"active":    "Active", "paid": "Active", "good standing": "Active", "in good standing": "Active",
		"expired":   "Expired", "lapsed": "Expired",
		"suspended": "Suspended",
		"inactive":  "Inactive",
	},
	VoterStatus: {
		"registered":     "Registered", "reg": "Registered",
		"not registered": "Not Registered", "unregistered": "Not Registered", "not found": "Not Registered",
		"not verified":   "Not Verified", "unverified": "Not Verified",
		"deceased":       "Deceased", "dead": "Deceased",
		"international":  "International", "abroad": "International",
	},
}
