package auth

import "context"

type subjectKey struct{}

// WithSubject stores the authenticated subject on the context.
func WithSubject(ctx context.Context, subject *Subject) context.Context {
	if subject == nil {
		return ctx
	}
	subject.normalize()
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext extracts the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) *Subject {
	if ctx == nil {
		return nil
	}
	if subject, ok := ctx.Value(subjectKey{}).(*Subject); ok {
		subject.normalize()
		return subject
	}
	return nil
}

// OrgFromContext returns the organization id of the authenticated
// subject, or "" when the request is unauthenticated.
func OrgFromContext(ctx context.Context) string {
	if subject := SubjectFromContext(ctx); subject != nil {
		return subject.OrgID
	}
	return ""
}
