package extractor

import (
	"path/filepath"
	"strings"
)

const extractionPrompt = `Analyze this ID document image and extract all visible information.

You must return ONLY a valid JSON object with these fields (use null if not visible or not applicable):
{
  "document_type": "string (e.g., 'driver_license', 'passport', 'green_card', 'national_id')",
  "full_name": "string",
  "first_name": "string",
  "last_name": "string",
  "middle_name": "string",
  "date_of_birth": "string (YYYY-MM-DD format if possible)",
  "document_number": "string",
  "expiration_date": "string (YYYY-MM-DD format if possible)",
  "issue_date": "string (YYYY-MM-DD format if possible)",
  "address": "string",
  "city": "string",
  "state": "string",
  "zip_code": "string",
  "country": "string",
  "gender": "string",
  "height": "string",
  "weight": "string",
  "eye_color": "string",
  "hair_color": "string",
  "nationality": "string",
  "issuing_authority": "string",
  "class": "string (for driver's license)",
  "restrictions": "string",
  "endorsements": "string"
}

IMPORTANT: Return ONLY the JSON object, no additional text, explanation, or markdown formatting.`

var mimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
}

// MimeType infers the image MIME type from the filename extension.
func MimeType(filename string) string {
	if mt, ok := mimeTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt
	}
	return "image/jpeg"
}
