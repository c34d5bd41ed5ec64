// Package httpcode explains HTTP status codes in more detail than the short
// reason phrases of net/http. Explanations are adapted from the MDN web docs
// (CC-BY-SA 2.5).
package httpcode

import (
	"errors"
	"fmt"
	nethttp "net/http"
)

// ErrUnknownCode is returned for status codes missing from the table.
var ErrUnknownCode = errors.New("status code not recognized")

type entry struct {
	phrase      string
	explanation string
}

var meanings = map[int]entry{
	100: {"", "This interim response indicates that everything so far is OK and that the client should continue with the request or ignore it if it is already finished."},
	101: {"", "This code is sent in response to an Upgrade request header by the client, and indicates the protocol the server is switching to."},
	102: {"", "This code indicates that the server has received and is processing the request, but no response is available yet."},
	200: {"", "The request has succeeded."},
	201: {"", "The request has succeeded and a new resource has been created as a result of it. This is typically the response sent after a POST request, or after some PUT requests."},
	202: {"", "The request has been received but not yet acted upon. It is intended for cases where another process or server handles the request, or for batch processing."},
	203: {"", "The returned meta-information is not exactly the set available from the origin server, but collected from a local or a third-party copy."},
	204: {"", "There is no content to send for this request, but the headers may be useful."},
	205: {"", "This response code is sent after accomplishing a request to tell the user agent to reset the document view which sent this request."},
	206: {"", "This response code is used because of a range header sent by the client to separate a download into multiple streams."},
	207: {"", "A Multi-Status response conveys information about multiple resources in situations where multiple status codes might be appropriate."},
	208: {"", "Used inside a DAV: propstat response element to avoid enumerating the internal members of multiple bindings to the same collection repeatedly."},
	226: {"", "The server has fulfilled a GET request for the resource, and the response is a representation of the result of one or more instance-manipulations applied to the current instance."},
	300: {"", "The request has more than one possible response. The user agent or user should choose one of them."},
	301: {"", "The URI of the requested resource has been changed permanently. The new URI is probably given in the response."},
	302: {"", "The URI of the requested resource has been changed temporarily. The same URI should be used by the client in future requests."},
	303: {"", "The server sent this response to direct the client to get the requested resource at another URI with a GET request."},
	304: {"", "The response has not been modified, so the client can continue to use the same cached version of the response."},
	305: {"", "Defined in a previous version of the HTTP specification to indicate that a requested response must be accessed by a proxy. Deprecated due to security concerns."},
	307: {"", "The requested resource is temporarily at another URI and must be requested again with the same method that was used in the prior request."},
	308: {"", "The resource is now permanently located at another URI, given by the Location header, and must be requested with the same method."},
	400: {"", "The server could not understand the request due to invalid syntax."},
	401: {"", "The client must authenticate itself to get the requested response."},
	402: {"", "This response code is reserved for future use; it was intended for digital payment systems."},
	403: {"", "The client does not have access rights to the content. Unlike 401, the client's identity is known to the server."},
	404: {"", "The server can not find the requested resource. In an API, this can also mean that the endpoint is valid but the resource itself does not exist."},
	405: {"", "The request method is known by the server but has been disabled and cannot be used."},
	406: {"", "After performing server-driven content negotiation, the server did not find any content following the criteria given by the user agent."},
	407: {"", "This is similar to 401 but authentication is needed to be done by a proxy."},
	408: {"", "The server would like to shut down this unused connection. It is sent on an idle connection by some servers, even without any previous request by the client."},
	409: {"", "This response is sent when a request conflicts with the current state of the server."},
	410: {"", "The requested content has been permanently deleted from the server, with no forwarding address."},
	411: {"", "The server rejected the request because the Content-Length header field is not defined and the server requires it."},
	412: {"", "The client has indicated preconditions in its headers which the server does not meet."},
	413: {"", "The request entity is larger than limits defined by the server; the server might close the connection or return a Retry-After header field."},
	414: {"", "The URI requested by the client is longer than the server is willing to interpret."},
	415: {"", "The media format of the requested data is not supported by the server, so the server is rejecting the request."},
	416: {"", "The range specified by the Range header field in the request can't be fulfilled."},
	417: {"", "The expectation indicated by the Expect request header field can't be met by the server."},
	418: {"I'm a teapot", "The server refuses the attempt to brew coffee with a teapot."},
	421: {"Misdirected Request", "The request was directed at a server that is not able to produce a response for the combination of scheme and authority in the request URI."},
	422: {"", "The request was well-formed but was unable to be followed due to semantic errors."},
	423: {"", "The resource that is being accessed is locked."},
	424: {"", "The request failed due to failure of a previous request."},
	426: {"", "The server refuses to perform the request using the current protocol but might be willing to do so after the client upgrades to a different protocol."},
	428: {"", "The origin server requires the request to be conditional, to prevent lost updates."},
	429: {"", "The user has sent too many requests in a given amount of time (rate limiting)."},
	431: {"", "The server is unwilling to process the request because its header fields are too large."},
	451: {"Unavailable For Legal Reasons", "The user requests an illegal resource, such as a web page censored by a government."},
	500: {"", "The server has encountered a situation it doesn't know how to handle."},
	501: {"", "The request method is not supported by the server and cannot be handled."},
	502: {"", "The server, while working as a gateway to get a response needed to handle the request, got an invalid response."},
	503: {"", "The server is not ready to handle the request, commonly because it is down for maintenance or overloaded."},
	504: {"", "The server is acting as a gateway and cannot get a response in time."},
	505: {"", "The HTTP version used in the request is not supported by the server."},
	506: {"", "The server has an internal configuration error: transparent content negotiation for the request results in a circular reference."},
	507: {"", "The server has an internal configuration error: the chosen variant resource is configured to engage in transparent content negotiation itself."},
	508: {"", "The server detected an infinite loop while processing the request."},
	510: {"", "Further extensions to the request are required for the server to fulfill it."},
	511: {"", "The client needs to authenticate to gain network access."},
}

// Meaning returns a long-form explanation of code.
func Meaning(code int) (string, error) {
	e, ok := meanings[code]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownCode, code)
	}
	return e.explanation, nil
}

// Phrase returns the short reason phrase for code, covering a few codes
// net/http does not name. Unknown codes yield an empty string.
func Phrase(code int) string {
	if e, ok := meanings[code]; ok && e.phrase != "" {
		return e.phrase
	}
	return nethttp.StatusText(code)
}

// Known reports whether code has an explanation.
func Known(code int) bool {
	_, ok := meanings[code]
	return ok
}
