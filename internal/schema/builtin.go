package schema

const (
	BusinessID = "business"
	PersonalID = "personal"
)

// Business is the company registration form: identity, banking, documents.
func Business() Schema {
	return Schema{
		ID:          BusinessID,
		Name:        "Business registration",
		Description: "Register a company with banking details and legal documents",
		Version:     "1.0.0",
		Steps: []Step{
			{
				ID:    "business",
				Title: "Business information",
				Fields: []Field{
					{Name: "businessName", Label: "Nama Perusahaan", Kind: KindText},
					{Name: "businessManager", Label: "Penanggung Jawab Perusahaan", Kind: KindText},
					{Name: "email", Label: "Email", Kind: KindEmail},
					{Name: "businessAddress", Label: "Alamat Perusahaan", Kind: KindTextarea, Placeholder: "Enter your business address"},
				},
			},
			{
				ID:    "banking",
				Title: "Banking information",
				Fields: []Field{
					{Name: "bankName", Label: "Nama Bank", Kind: KindText},
					{Name: "bankLocation", Label: "Lokasi KCP", Kind: KindText},
					{Name: "bankNumber", Label: "Nomor Rekening", Kind: KindText},
					{Name: "bankAccount", Label: "Nama Pemilik Rekening", Kind: KindText},
				},
			},
			{
				ID:    "documents",
				Title: "Documents",
				Fields: []Field{
					{Name: "companyLogo", Label: "Logo Perusahaan (Optional)", Kind: KindFile},
					{Name: "npwp", Label: "NPWP", Kind: KindFile},
					{Name: "sipNib", Label: "SIP/NIB", Kind: KindFile},
					{Name: "nidTdp", Label: "NID/TDP (Optional)", Kind: KindFile},
					{Name: "ktp", Label: "KTP Direktur", Kind: KindFile},
					{Name: "aktaPendirian", Label: "Akta Pendirian Perusahaan", Kind: KindFile},
					{Name: "aktaPengesahanPendirian", Label: "Pengesahan Akta Pendirian Perusahaan", Kind: KindFile},
					{Name: "othersFile", Label: "Dokumen Pendukung (Optional)", Kind: KindFile},
				},
			},
		},
	}
}

// Personal is the individual-owner form: personal data, business, fewer documents.
func Personal() Schema {
	return Schema{
		ID:          PersonalID,
		Name:        "Personal registration",
		Description: "Register as an individual business owner",
		Version:     "1.0.0",
		Steps: []Step{
			{
				ID:    "personal",
				Title: "Personal information",
				Fields: []Field{
					{Name: "name", Label: "Nama Lengkap", Kind: KindText},
					{Name: "email", Label: "Email", Kind: KindEmail},
					{Name: "phone", Label: "Nomor Telepon", Kind: KindText},
					{Name: "idNumber", Label: "NIK", Kind: KindText},
				},
			},
			{
				ID:    "business",
				Title: "Business information",
				Fields: []Field{
					{Name: "businessName", Label: "Nama Usaha", Kind: KindText},
					{Name: "businessType", Label: "Jenis Usaha", Kind: KindChoice, Options: []string{"shipper", "transporter", "warehouse"}},
					{Name: "businessAddress", Label: "Alamat Usaha", Kind: KindTextarea, Placeholder: "Enter your business address"},
				},
			},
			{
				ID:    "documents",
				Title: "Documents",
				Fields: []Field{
					{Name: "ktp", Label: "KTP", Kind: KindFile},
					{Name: "npwp", Label: "NPWP", Kind: KindFile},
					{Name: "othersFile", Label: "Dokumen Pendukung (Optional)", Kind: KindFile},
				},
			},
		},
	}
}

// RegisterBuiltins installs the bundled schemas.
func RegisterBuiltins(reg *Registry) {
	reg.MustRegister(Business())
	reg.MustRegister(Personal())
}
