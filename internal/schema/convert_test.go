package schema

import "testing"

func TestNormalize(t *testing.T) {
	status := Column{Name: "status", Type: FieldEnum, EnumValues: []string{"open", "on_hold"}}

	tests := []struct {
		name    string
		value   string
		col     Column
		want    string
		wantErr bool
	}{
		{"empty stays empty", "  ", Column{Type: FieldDate}, "", false},
		{"text trimmed", "  Jane Doe ", Column{Type: FieldText}, "Jane Doe", false},
		{"iso date", "2024-03-05", Column{Type: FieldDate}, "2024-03-05", false},
		{"us date", "3/5/2024", Column{Type: FieldDate}, "2024-03-05", false},
		{"long date", "Mar 5, 2024", Column{Type: FieldDate}, "2024-03-05", false},
		{"bad date", "next tuesday", Column{Type: FieldDate}, "", true},
		{"plain number", "42.5", Column{Type: FieldNumeric}, "42.5", false},
		{"currency number", "$1,234.50", Column{Type: FieldNumeric}, "1234.50", false},
		{"accounting negative", "(100)", Column{Type: FieldNumeric}, "-100", false},
		{"percent", "25%", Column{Type: FieldNumeric}, "25", false},
		{"bad number", "12abc", Column{Type: FieldNumeric}, "", true},
		{"bool yes", "Yes", Column{Type: FieldBool}, "true", false},
		{"bool zero", "0", Column{Type: FieldBool}, "false", false},
		{"bad bool", "maybe", Column{Type: FieldBool}, "", true},
		{"enum case folded", "ON_HOLD", status, "on_hold", false},
		{"enum unknown", "closed", status, "", true},
		{"timestamp to utc", "2024-03-05T10:00:00+02:00", Column{Type: FieldTimestamp}, "2024-03-05T08:00:00Z", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.value, tt.col)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseDate_TwoDigitYear(t *testing.T) {
	got, ok := ParseDate("1/2/95")
	if !ok {
		t.Fatal("ParseDate(1/2/95) failed")
	}
	if got.Year() != 1995 {
		t.Errorf("ParseDate(1/2/95).Year() = %d, want 1995", got.Year())
	}
}

func TestValidateCell(t *testing.T) {
	req := Column{Name: "full_name", Type: FieldText, Required: true}
	if err := ValidateCell("", req); err == nil {
		t.Errorf("ValidateCell(\"\", required) = nil, want error")
	}
	if err := ValidateCell("Ada", req); err != nil {
		t.Errorf("ValidateCell(\"Ada\") = %v, want nil", err)
	}
	opt := Column{Name: "score", Type: FieldNumeric}
	if err := ValidateCell("", opt); err != nil {
		t.Errorf("ValidateCell(\"\", optional) = %v, want nil", err)
	}
	if err := ValidateCell("abc", opt); err == nil {
		t.Errorf("ValidateCell(\"abc\", numeric) = nil, want error")
	}
}
