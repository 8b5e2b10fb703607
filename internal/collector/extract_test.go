package collector

import "testing"

func TestExtractContact(t *testing.T) {
	tests := []struct {
		name string
		form Form
		want Contact
	}{
		{
			name: "Common keys",
			form: Form{Fields: []FormField{
				{Name: "name", Value: "Asha"},
				{Name: "phone", Value: "+91 98765-43210"},
				{Name: "email", Value: "asha@example.com"},
			}},
			want: Contact{Name: "Asha", Phone: "+919876543210", Email: "asha@example.com"},
		},
		{
			name: "Alternate keys in priority order",
			form: Form{Fields: []FormField{
				{Name: "fullname", Value: "Ravi Kumar"},
				{Name: "fname", Value: "Ravi"},
				{Name: "modal_dg_mobile", Value: "9876543210"},
				{Name: "mail", Value: "ravi@example.com"},
			}},
			want: Contact{Name: "Ravi", Phone: "9876543210", Email: "ravi@example.com"},
		},
		{
			name: "Phone from tel input",
			form: Form{Fields: []FormField{
				{Name: "contact_no", Type: "tel", Value: "98765 43210"},
			}},
			want: Contact{Phone: "9876543210"},
		},
		{
			name: "Phone and email from name heuristics",
			form: Form{Fields: []FormField{
				{Name: "user_mobile_no", Value: "987-654-3210"},
				{Name: "work_email", Value: "w@example.com"},
			}},
			want: Contact{Phone: "9876543210", Email: "w@example.com"},
		},
		{
			name: "Email from type",
			form: Form{Fields: []FormField{
				{Name: "contact", Type: "email", Value: "t@example.com"},
			}},
			want: Contact{Email: "t@example.com"},
		},
		{
			name: "Unparseable phone kept raw",
			form: Form{Fields: []FormField{
				{Name: "phone", Value: "call me"},
			}},
			want: Contact{Phone: "call me"},
		},
		{
			name: "Empty values are missing",
			form: Form{Fields: []FormField{
				{Name: "name", Value: ""},
				{Name: "fname", Value: "Meera"},
			}},
			want: Contact{Name: "Meera"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractContact(tt.form); got != tt.want {
				t.Errorf("ExtractContact() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFieldContact(t *testing.T) {
	if got := FieldContact(FormField{Name: "full_name", Value: "Asha"}); got.Name != "Asha" {
		t.Errorf("expected name from full_name, got %+v", got)
	}
	if got := FieldContact(FormField{Name: "telephone", Value: "9876543210"}); got.Phone != "9876543210" {
		t.Errorf("expected phone from telephone, got %+v", got)
	}
	if got := FieldContact(FormField{Name: "user_email", Value: "x@example.com"}); got.Email != "" {
		t.Errorf("only the exact email field is captured on blur, got %+v", got)
	}
	if got := FieldContact(FormField{Name: "phone"}); !got.Empty() {
		t.Errorf("empty value should yield empty contact, got %+v", got)
	}
}

func TestPhoneInText(t *testing.T) {
	if got, ok := PhoneInText("Call +91 9876543210 today"); !ok || got != "+91 9876543210" {
		t.Errorf("PhoneInText() = %q, %v", got, ok)
	}
	if _, ok := PhoneInText("Book a site visit"); ok {
		t.Error("expected no phone number")
	}
}

func TestForm_IsContactForm(t *testing.T) {
	if !(Form{Name: "form1"}).IsContactForm() {
		t.Error("form1 should be a contact form")
	}
	if !(Form{Action: "/contact.php"}).IsContactForm() {
		t.Error("contact action should be a contact form")
	}
	if (Form{Name: "search"}).IsContactForm() {
		t.Error("search form is not a contact form")
	}
}
