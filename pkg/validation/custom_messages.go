package validation

func CustomMessage(field string) map[string]string {
	var customValidationMessages = map[string]map[string]string{
		"Name": {
			"required": "Name must be between 2 and 50 characters",
			"min":      "Name must be between 2 and 50 characters",
			"max":      "Name must be between 2 and 50 characters",
		},
		"Email": {
			"required": "Please provide a valid email",
			"email":    "Please provide a valid email",
		},
		"Password": {
			"required":       "Password is required",
			"min":            "Password must be at least 6 characters long",
			"strongpassword": "Password must be at least 6 characters long and contain at least one uppercase letter, one lowercase letter, and one number",
		},
		"Code": {
			"required":  "Promo code is required",
			"promocode": "Promo code must be 3-20 alphanumeric characters",
		},
		"Discount": {
			"gte": "Discount must be between 0 and 100",
			"lte": "Discount must be between 0 and 100",
		},
		"MaxUses": {
			"gte": "Max uses must be at least 1",
		},
		"IsAdmin": {
			"boolean": "isAdmin must be a boolean value",
		},
	}
	return customValidationMessages[field]
}
