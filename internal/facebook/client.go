package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/time/rate"
)

var (
	ErrExchangeFailed = errors.New("authorization code exchange failed")
	ErrFetchFailed    = errors.New("failed to fetch posts from Facebook")
)

const postFields = "id,message,created_time,full_picture,attachments{media,subattachments}"

// Post is one Graph API post with its media attachments.
type Post struct {
	ID          string       `json:"id"`
	Message     string       `json:"message"`
	CreatedTime string       `json:"created_time"`
	FullPicture string       `json:"full_picture"`
	Attachments *Attachments `json:"attachments"`
}

type Attachments struct {
	Data []Attachment `json:"data"`
}

type Attachment struct {
	Media          *Media       `json:"media"`
	Subattachments *Attachments `json:"subattachments"`
}

type Media struct {
	Image *Image `json:"image"`
}

type Image struct {
	Src string `json:"src"`
}

type postsResponse struct {
	Data   []Post `json:"data"`
	Paging *struct {
		Next string `json:"next"`
	} `json:"paging"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// Client talks to the Facebook Graph API: it exchanges authorization codes
// for access tokens and pages through the user's recent posts.
type Client struct {
	oauth     *oauth2.Config
	baseURL   string
	pageLimit int
	limiter   *rate.Limiter
	client    *http.Client
	logger    *logrus.Logger
}

func NewClient(appID, appSecret, graphVersion string, pageLimit int, logger *logrus.Logger) *Client {
	if pageLimit <= 0 {
		pageLimit = 25
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     appID,
			ClientSecret: appSecret,
			Endpoint:     endpoints.Facebook,
		},
		baseURL:   "https://graph.facebook.com/" + graphVersion,
		pageLimit: pageLimit,
		// Graph API pagination is throttled to stay within rate limits
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// ExchangeCode trades a single-use authorization code for an access token.
// The redirect URI must exactly match the one used to obtain the code.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	token, err := c.oauth.Exchange(ctx, code, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	if err != nil {
		c.logger.WithError(err).Error("Facebook token exchange failed")
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return token, nil
}

// FetchRecentPosts pages through the user's posts published since the given
// time. A Graph API error object on any page aborts the fetch.
func (c *Client) FetchRecentPosts(ctx context.Context, token *oauth2.Token, since time.Time) ([]Post, error) {
	params := url.Values{
		"fields":       []string{postFields},
		"since":        []string{fmt.Sprintf("%d", since.Unix())},
		"limit":        []string{fmt.Sprintf("%d", c.pageLimit)},
		"access_token": []string{token.AccessToken},
	}
	nextURL := c.baseURL + "/me/posts?" + params.Encode()

	var allPosts []Post
	for nextURL != "" {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := c.fetchPage(ctx, nextURL)
		if err != nil {
			return nil, err
		}

		allPosts = append(allPosts, page.Data...)

		nextURL = ""
		if page.Paging != nil {
			nextURL = page.Paging.Next
		}
	}

	c.logger.WithField("post_count", len(allPosts)).Info("Fetched posts from Facebook")
	return allPosts, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (*postsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).Error("Facebook posts request failed")
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	var page postsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	if page.Error != nil {
		c.logger.WithFields(logrus.Fields{
			"code":    page.Error.Code,
			"type":    page.Error.Type,
			"message": page.Error.Message,
		}).Error("Facebook API returned an error")
		return nil, fmt.Errorf("%w: %s", ErrFetchFailed, page.Error.Message)
	}

	return &page, nil
}

// ImageURLs collects every image attached to a post, de-duplicated and in
// encounter order (cover picture first).
func ImageURLs(post Post) []string {
	var images []string
	seen := make(map[string]bool)

	add := func(src string) {
		if src != "" && !seen[src] {
			seen[src] = true
			images = append(images, src)
		}
	}

	add(post.FullPicture)

	if post.Attachments == nil {
		return images
	}
	for _, attachment := range post.Attachments.Data {
		if attachment.Media != nil && attachment.Media.Image != nil {
			add(attachment.Media.Image.Src)
		}
		if attachment.Subattachments == nil {
			continue
		}
		for _, sub := range attachment.Subattachments.Data {
			if sub.Media != nil && sub.Media.Image != nil {
				add(sub.Media.Image.Src)
			}
		}
	}

	return images
}
