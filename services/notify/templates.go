package notify

import (
	"fmt"
	"html"
)

const layout = `
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: %s; color: white; padding: 20px; text-align: center; border-radius: 5px; }
        .content { background-color: #f9f9f9; padding: 20px; margin-top: 20px; border-radius: 5px; }
        .info { background-color: #eef4fb; padding: 15px; margin: 15px 0; border-left: 4px solid %s; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h2>%s</h2></div>
        <div class="content">
            <p>Dear <strong>%s</strong>,</p>
            %s
            <p>Best regards,<br/>Team TriaRight</p>
        </div>
    </div>
</body>
</html>
`

const (
	green = "#4CAF50"
	red   = "#f44336"
	blue  = "#1e88e5"
)

func render(color, heading, name, content string) string {
	return fmt.Sprintf(layout, color, color, html.EscapeString(heading), html.EscapeString(name), content)
}

// ExamResult reports a graded attempt.
func ExamResult(to, name, examTitle string, score, total int, percentage float64, passed, auto bool) Email {
	verdict, color := "did not pass", red
	if passed {
		verdict, color = "passed", green
	}
	note := ""
	if auto {
		note = "<p>Your attempt was submitted automatically when the time limit was reached.</p>"
	}
	body := fmt.Sprintf(`<p>You %s <strong>%s</strong>.</p>
            <div class="info">
                <p><strong>Score:</strong> %d / %d</p>
                <p><strong>Percentage:</strong> %.2f%%</p>
            </div>
            %s`, verdict, html.EscapeString(examTitle), score, total, percentage, note)
	return Email{
		To:      to,
		Subject: fmt.Sprintf("Result: %s", examTitle),
		Body:    render(color, "Exam Result", name, body),
	}
}

// PaymentReceipt confirms a captured payment.
func PaymentReceipt(to, name, item, orderID string, amount float64, currency string) Email {
	body := fmt.Sprintf(`<p>We have received your payment. You are now enrolled.</p>
            <div class="info">
                <p><strong>Item:</strong> %s</p>
                <p><strong>Order:</strong> %s</p>
                <p><strong>Amount:</strong> %s %.2f</p>
            </div>`, html.EscapeString(item), html.EscapeString(orderID), currency, amount)
	return Email{
		To:      to,
		Subject: "Payment received - " + item,
		Body:    render(green, "Payment Successful", name, body),
	}
}

// CourseCompleted congratulates a learner on finishing every subtopic.
func CourseCompleted(to, name, course string) Email {
	body := fmt.Sprintf(`<p>You have completed <strong>%s</strong>. You can now download your certificate from your dashboard.</p>`,
		html.EscapeString(course))
	return Email{
		To:      to,
		Subject: "Course completed - " + course,
		Body:    render(green, "Congratulations!", name, body),
	}
}

// CertificateIssued sends the certificate PDF as an attachment.
func CertificateIssued(to, name, course, number, path string) Email {
	body := fmt.Sprintf(`<p>Your certificate for <strong>%s</strong> is attached.</p>
            <div class="info"><p><strong>Certificate number:</strong> %s</p></div>`,
		html.EscapeString(course), html.EscapeString(number))
	return Email{
		To:         to,
		Subject:    "Your certificate - " + course,
		Body:       render(blue, "Certificate Issued", name, body),
		Attachment: path,
	}
}

// ApplicationReceived tells an employer about a new applicant.
func ApplicationReceived(to, employer, student, internship string) Email {
	body := fmt.Sprintf(`<p><strong>%s</strong> applied for <strong>%s</strong>.</p>`,
		html.EscapeString(student), html.EscapeString(internship))
	return Email{
		To:      to,
		Subject: "New application - " + internship,
		Body:    render(blue, "New Application", employer, body),
	}
}

// ApplicationAccepted carries the interview link.
func ApplicationAccepted(to, student, internship, interviewLink string) Email {
	body := fmt.Sprintf(`<p>Your application for <strong>%s</strong> has been <strong>ACCEPTED</strong>.</p>
            <div class="info"><p><strong>Interview link:</strong> <a href="%s">%s</a></p></div>`,
		html.EscapeString(internship), html.EscapeString(interviewLink), html.EscapeString(interviewLink))
	return Email{
		To:      to,
		Subject: fmt.Sprintf("Congratulations %s - Your Application is Accepted!", student),
		Body:    render(green, "Congratulations!", student, body),
	}
}

func ApplicationRejected(to, student, internship string) Email {
	body := fmt.Sprintf(`<p>We regret to inform you that your application for <strong>%s</strong> has been <strong>REJECTED</strong> at this time.</p>
            <p>We encourage you to apply for other openings.</p>`, html.EscapeString(internship))
	return Email{
		To:      to,
		Subject: "Application Status - Rejection",
		Body:    render(red, "Application Status", student, body),
	}
}
