// Package apierr defines the failure type shared by every cloudlab page.
//
// A page operation either returns its parsed result or an *Error tagged
// with a Reason. The reason is what callers branch on: the summarization
// retry wrapper retries ReasonTransport and nothing else, the HTTP front
// maps reasons to status codes, and the CLI prints the message verbatim.
//
//	resp, err := client.Do(req)
//	if err != nil {
//	    return apierr.FromTransport("speech.synthesize", err)
//	}
//	if err := apierr.CheckResponse("speech.synthesize", resp); err != nil {
//	    return err
//	}
package apierr
