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

package llm

// the system prompt shared by all backends; the deed text is appended as the
// user message
const extractionPrompt = `You are an expert assistant that extracts structured data from OCR text of Indian property sale deeds (mixed English/Kannada).

Return a single JSON object with these fields and nothing else:

{
  "transaction_date": "YYYY-MM-DD or null",
  "registration_office": "string or null",
  "property_details": {
    "schedule_b_area": float or null (square feet),
    "schedule_c_property_name": "string or null",
    "schedule_c_property_address": "string or null (translate to English)",
    "schedule_c_property_area": float or null (square feet),
    "paid_in_cash_mode": "string or null (only if cash payment is explicit)",
    "pincode": "string or null (from the Schedule C address only)",
    "state": "string or null",
    "sale_consideration": "string or null (as printed, e.g. Rs.28,62,413/-)",
    "stamp_duty_fee": "string or null (near the Kannada term for stamp duty)",
    "registration_fee": "string or null (near the Kannada term for registration fee)",
    "total_fee": "string or null (the fee table total, if printed)"
  },
  "buyers": [...], "sellers": [...], "confirming_parties": [...]
}

Each party object has: name, gender, father_name, date_of_birth (YYYY-MM-DD),
aadhaar_number (12 digits), pan_card_number (10 alphanumeric), address
(translated to English), pincode, state, phone_number, secondary_phone_number,
email. Sellers additionally have property_share (a percentage string).

Rules:
- The father's name follows S/O, D/O or W/O after the person's name, or the
  Kannada markers for son, daughter and wife. Extract the name that follows.
- Preserve names exactly as written. Use null for anything not found.
- Confirming parties must be explicitly named as such; never move sellers,
  buyers, witnesses or signatories into that list.
- Translate all addresses to English; if translation is impossible, return
  them as-is.`
