// Copyright (c) 2025 The Deedpipe Project and its Contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package deeds defines the structured record extracted from an Indian
// property sale deed. The shapes here are shared by the LLM extractor (which
// produces them from JSON), the validator (which cleans them in place), and
// the repository (which persists them).
package deeds

// A party to the sale: a buyer, a seller, or a confirming party. All fields
// are strings as extracted from the deed text; empty means "not found".
// Monetary and identity fields are cleaned by the validate package, never
// here.
type Party struct {
	// the party's full name, as printed in the deed
	Name   string `json:"name"`
	Gender string `json:"gender"`
	// relation-derived fields, split out of Name by the validator when the
	// deed uses S/O, D/O, W/O or their Kannada equivalents
	FatherName  string `json:"father_name"`
	DateOfBirth string `json:"date_of_birth"`
	// identity documents; shape-checked by the validator
	AadhaarNumber        string `json:"aadhaar_number"`
	PanCardNumber        string `json:"pan_card_number"`
	Address              string `json:"address"`
	Pincode              string `json:"pincode"`
	State                string `json:"state"`
	PhoneNumber          string `json:"phone_number"`
	SecondaryPhoneNumber string `json:"secondary_phone_number"`
	Email                string `json:"email"`
	// fraction of the property held (sellers only)
	PropertyShare string `json:"property_share,omitempty"`
}

// details of the property being conveyed
type Property struct {
	// Schedule B area in square feet
	ScheduleBArea *float64 `json:"schedule_b_area"`
	// Schedule C property name, address and area
	ScheduleCPropertyName    string   `json:"schedule_c_property_name"`
	ScheduleCPropertyAddress string   `json:"schedule_c_property_address"`
	ScheduleCPropertyArea    *float64 `json:"schedule_c_property_area"`
	// payment mode when paid in cash
	PaidInCashMode string `json:"paid_in_cash_mode"`
	Pincode        string `json:"pincode"`
	State          string `json:"state"`
	// monetary fields preserved in their original human form
	// (e.g. "Rs.28,62,413/-")
	SaleConsideration string `json:"sale_consideration"`
	StampDutyFee      string `json:"stamp_duty_fee"`
	RegistrationFee   string `json:"registration_fee"`
	// registration fee total as printed in the fee table, when present; used
	// only to cross-check RegistrationFee
	TotalFee string `json:"total_fee,omitempty"`
	// guidance value derived from the registration fee
	GuidanceValue string `json:"guidance_value"`
	// validator remarks (PAN mismatches and the like)
	Remarks string `json:"remarks"`
}

// A Record holds everything extracted from a single deed document. It is the
// unit persisted by the repository, keyed by DocumentId.
type Record struct {
	// the filename stem under which the document was admitted
	DocumentId string `json:"document_id"`
	// the batch the document belongs to
	BatchId string `json:"batch_id"`
	// date on which the transaction was registered (YYYY-MM-DD)
	TransactionDate string `json:"transaction_date"`
	// the sub-registrar office named in the deed
	RegistrationOffice string   `json:"registration_office"`
	Property           Property `json:"property_details"`
	Buyers             []Party  `json:"buyers"`
	Sellers            []Party  `json:"sellers"`
	ConfirmingParties  []Party  `json:"confirming_parties"`
}

// Returns a deep copy of the record. Records cross the stage boundary and the
// repository boundary by value; no shared mutable pointers.
func (r Record) Copy() Record {
	c := r
	if r.Property.ScheduleBArea != nil {
		v := *r.Property.ScheduleBArea
		c.Property.ScheduleBArea = &v
	}
	if r.Property.ScheduleCPropertyArea != nil {
		v := *r.Property.ScheduleCPropertyArea
		c.Property.ScheduleCPropertyArea = &v
	}
	c.Buyers = append([]Party(nil), r.Buyers...)
	c.Sellers = append([]Party(nil), r.Sellers...)
	c.ConfirmingParties = append([]Party(nil), r.ConfirmingParties...)
	return c
}
