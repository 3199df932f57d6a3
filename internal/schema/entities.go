package schema

func init() {
	registerEnquiries()
	registerSponsors()
	registerOnboardings()
	registerPeople()
	registerPersonRoles()
	registerScreenings()
	registerRiskAssessments()
	registerAuditLog()
}

func registerEnquiries() {
	Register(Table{
		Type:   Enquiry,
		Prefix: "ENQ",
		Delete: DeleteSoft,
		Columns: []Column{
			{Name: "contact_name", Type: FieldText, Required: true},
			{Name: "contact_email", Type: FieldText},
			{Name: "phone", Type: FieldText},
			{Name: "company", Type: FieldText},
			{Name: "requested_fund", Type: FieldText},
			{Name: "status", Type: FieldEnum, EnumValues: []string{"new", "in_review", "converted", "rejected", StatusDeleted}},
			{Name: "notes", Type: FieldText},
		},
	})
}

func registerSponsors() {
	Register(Table{
		Type:   Sponsor,
		Prefix: "SPO",
		Delete: DeleteSoft,
		Columns: []Column{
			{Name: "legal_name", Type: FieldText, Required: true},
			{Name: "registration_number", Type: FieldText},
			{Name: "jurisdiction", Type: FieldText},
			{Name: "address", Type: FieldText},
			{Name: "status", Type: FieldEnum, EnumValues: []string{"active", "inactive", StatusDeleted}},
		},
	})
}

func registerOnboardings() {
	Register(Table{
		Type:   Onboarding,
		Prefix: "ONB",
		Delete: DeleteSoft,
		Columns: []Column{
			{Name: "enquiry_id", Type: FieldText, Required: true, References: Enquiry},
			{Name: "sponsor_id", Type: FieldText, References: Sponsor},
			{Name: "fund_name", Type: FieldText},
			{Name: "phase", Type: FieldEnum, EnumValues: []string{"intake", "kyc", "risk_review", "approval", "complete"}},
			{Name: "status", Type: FieldEnum, EnumValues: []string{"open", "on_hold", "approved", "rejected", StatusDeleted}},
			{Name: "owner", Type: FieldText},
		},
	})
}

func registerPeople() {
	Register(Table{
		Type:   Person,
		Prefix: "PER",
		Delete: DeleteHard,
		Columns: []Column{
			{Name: "full_name", Type: FieldText, Required: true},
			{Name: "date_of_birth", Type: FieldDate},
			{Name: "nationality", Type: FieldText},
			{Name: "email", Type: FieldText},
			{Name: "address", Type: FieldText},
		},
	})
}

func registerPersonRoles() {
	Register(Table{
		Type:   PersonRole,
		Prefix: "ROL",
		Delete: DeleteHard,
		Columns: []Column{
			{Name: "person_id", Type: FieldText, Required: true, References: Person},
			{Name: "sponsor_id", Type: FieldText, References: Sponsor},
			{Name: "onboarding_id", Type: FieldText, References: Onboarding},
			{Name: "role", Type: FieldEnum, Required: true, EnumValues: []string{"principal", "beneficial_owner", "signatory", "director"}},
			{Name: "ownership_pct", Type: FieldNumeric},
		},
	})
}

func registerScreenings() {
	Register(Table{
		Type:   Screening,
		Prefix: "SCR",
		Delete: DeleteHard,
		Columns: []Column{
			{Name: "person_id", Type: FieldText, Required: true, References: Person},
			{Name: "onboarding_id", Type: FieldText, Required: true, References: Onboarding},
			{Name: "provider", Type: FieldText},
			{Name: "result", Type: FieldEnum, EnumValues: []string{"pending", "clear", "potential_match", "match"}},
			{Name: "checked_on", Type: FieldDate},
			{Name: "notes", Type: FieldText},
		},
	})
}

func registerRiskAssessments() {
	Register(Table{
		Type:   RiskAssessment,
		Prefix: "RSK",
		Delete: DeleteHard,
		Columns: []Column{
			{Name: "onboarding_id", Type: FieldText, Required: true, References: Onboarding},
			{Name: "score", Type: FieldNumeric},
			{Name: "rating", Type: FieldEnum, EnumValues: []string{"low", "medium", "high"}},
			{Name: "assessed_by", Type: FieldText},
			{Name: "assessed_on", Type: FieldDate},
			{Name: "rationale", Type: FieldText},
		},
	})
}

func registerAuditLog() {
	Register(Table{
		Type:     AuditLogEntry,
		Prefix:   "AUD",
		Delete:   DeleteNever,
		ReadOnly: true,
		Columns: []Column{
			{Name: "timestamp", Type: FieldTimestamp, Required: true},
			{Name: "actor", Type: FieldText, Required: true},
			{Name: "action", Type: FieldText, Required: true},
			{Name: "entity_type", Type: FieldText, Required: true},
			{Name: "entity_id", Type: FieldText, Required: true},
			{Name: "details", Type: FieldText},
		},
	})
}
