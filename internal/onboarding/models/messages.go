package models

// User-facing strings are pre-localized for the portal's locale (es-MX).
// Raw backend errors never reach the caller; they are logged instead.
const (
	MsgEmailTaken = "Este correo electrónico ya está registrado."
	MsgPhoneTaken = "Este número de teléfono ya está registrado."
	MsgNameTaken  = "Este nombre de restaurante ya está registrado."

	MsgNoUserID     = "No se recibió un ID de usuario. Intenta de nuevo."
	MsgSignupFailed = "No se pudo crear tu cuenta. Intenta de nuevo más tarde."

	// MsgDegraded is returned on degraded success: the account exists but the
	// business profile needs manual follow-up.
	MsgDegraded = "Cuenta creada, pero hubo un problema al registrar tu perfil. Nuestro equipo lo revisará en breve."
)
