package registration

// Visitor facing messages. Kept together so the wording can be changed or
// translated in one place.
const (
	msgSecurity     = "Security check failed. Please refresh the page and try again."
	msgInvalidEvent = "Invalid event."
	msgNameRequired = "Name is required."
	msgNameLength   = "Name must be between 2 and 100 characters long."
	msgNameChars    = "Name contains characters that are not allowed."
	msgEmailInvalid = "Please enter a valid email address."
	msgEmailLength  = "Email address is too long (max. 254 characters)."
	msgEmailChars   = "Email address contains characters that are not allowed."
	msgClosed       = "Sorry, registration closed for this event."
	msgDuplicate    = "This email address is already registered for this event."
	msgFull         = "Sorry, all places for this event are taken."
	msgStorage      = "Something went wrong while saving your registration. Please try again."
	msgSuccess      = "Thank you! Your registration was successful."
)
