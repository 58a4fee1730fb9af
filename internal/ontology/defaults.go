package ontology

// UncategorizedCategory holds capabilities declared outside any category
const UncategorizedCategory = "uncategorized"

var (
	strongTemplates = []string{
		"provides %s",
		"offers %s",
		"available %s",
		"performs %s",
		"%s available",
	}

	weakTemplates = []string{
		"%s",
		"%s service",
		"%s care",
	}

	negativeTemplates = []string{
		"no %s",
		"without %s",
		"%s unavailable",
		"lack %s",
	}
)

// defaultSynonyms are merged into every definition with a matching id
var defaultSynonyms = map[string][]string{
	"c_section":                {"c section", "c-section", "cesarean", "caesarean"},
	"emergency_obstetric_care": {"emergency obstetric care", "emergency maternal care"},
	"blood_transfusion":        {"blood transfusion", "transfusion"},
	"neonatal_resuscitation":   {"neonatal resuscitation", "newborn resuscitation"},
	"general_surgery":          {"general surgery", "surgical services"},
	"operating_theatre":        {"operating theatre", "operating room", "surgical theatre"},
	"oxygen_supply":            {"oxygen supply", "oxygen", "medical oxygen"},
	"ventilators":              {"ventilator", "ventilators", "mechanical ventilation"},
	"x_ray":                    {"x ray", "x-ray", "radiography"},
	"lab_tests":                {"lab tests", "laboratory", "laboratory testing"},
	"blood_bank":               {"blood bank", "blood storage"},
	"tb_diagnostics":           {"tb diagnostics", "tuberculosis diagnostics", "tb testing"},
	"hiv_care":                 {"hiv care", "hiv services", "antiretroviral therapy"},
}

// defaultPrerequisites are appended after any declared rules
var defaultPrerequisites = map[string][]string{
	"icu":       {"oxygen_supply", "ventilators"},
	"c_section": {"anesthesia", "operating_theatre", "blood_transfusion"},
	"dialysis":  {"lab_tests"},
	"x_ray":     {"lab_tests"},
}

// defaultCatalogue is used when no capability file yields any capability
var defaultCatalogue = []Category{
	{Name: "critical_care", IDs: []string{"icu", "ventilators", "oxygen_supply"}},
	{Name: "maternal_newborn", IDs: []string{"c_section", "emergency_obstetric_care", "neonatal_resuscitation"}},
	{Name: "surgery", IDs: []string{"general_surgery", "operating_theatre", "anesthesia"}},
	{Name: "blood_services", IDs: []string{"blood_transfusion", "blood_bank"}},
	{Name: "diagnostics", IDs: []string{"x_ray", "lab_tests", "tb_diagnostics"}},
	{Name: "chronic_care", IDs: []string{"dialysis", "hiv_care"}},
}
