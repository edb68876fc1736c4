package email

const (
	subjectLeadNotificationFmt = "Nouveau lead qualifié : %s (%s)"
)
