package slaveapi_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openrobots-dev/rosnode/registry"
	"github.com/openrobots-dev/rosnode/slaveapi"
	"github.com/openrobots-dev/rosnode/wire"
	"github.com/openrobots-dev/rosnode/xmlrpc"
)

var _ = Describe("Server dispatch", func() {
	var (
		reg *registry.Registry
		srv *slaveapi.Server
	)

	BeforeEach(func() {
		reg = registry.New()
		srv = slaveapi.New(reg, "/listener", "http://master:11311/", wire.Address{IP: "127.0.0.1", Port: 44444}, slaveapi.Callbacks{}, nil)
	})

	It("reports an empty publication list before anything is advertised", func() {
		_, _, v := call(GinkgoT(), srv, "getPublications", xmlrpc.String("/caller"))
		arr, err := v.AsArray()
		Expect(err).ToNot(HaveOccurred())
		Expect(arr).To(BeEmpty())
	})

	It("lists an advertised publisher topic", func() {
		td := registry.TypeDescriptor{Name: "std_msgs/String", MD5Sum: "992ce8a1687cec8c8bd883ec73ca41d1"}
		Expect(reg.AdvertiseTopic(registry.TopicEntry{Name: "/chatter", Type: td, Role: registry.RolePublisher})).To(Succeed())

		code, _, v := call(GinkgoT(), srv, "getPublications", xmlrpc.String("/caller"))
		Expect(code).To(BeEquivalentTo(1))

		arr, err := v.AsArray()
		Expect(err).ToNot(HaveOccurred())
		Expect(arr).To(HaveLen(1))

		pair, err := arr[0].AsArray()
		Expect(err).ToNot(HaveOccurred())
		name, _ := pair[0].AsString()
		Expect(name).To(Equal("/chatter"))
	})

	It("rejects publisherUpdate with a malformed publisher list", func() {
		code, _, _ := call(GinkgoT(), srv, "publisherUpdate",
			xmlrpc.String("/caller"), xmlrpc.String("/chatter"), xmlrpc.String("not-an-array"))
		Expect(code).To(BeEquivalentTo(-1))
	})

	It("forwards publisherUpdate to the registered callback", func() {
		var gotTopic string
		var gotPubs []string
		srv = slaveapi.New(reg, "/listener", "http://master:11311/", wire.Address{IP: "127.0.0.1", Port: 44444}, slaveapi.Callbacks{
			PublisherUpdate: func(topic string, publishers []string) error {
				gotTopic, gotPubs = topic, publishers
				return nil
			},
		}, nil)

		code, _, _ := call(GinkgoT(), srv, "publisherUpdate",
			xmlrpc.String("/caller"), xmlrpc.String("/chatter"), xmlrpc.ArrayOf(xmlrpc.String("http://pub1:1234/")))
		Expect(code).To(BeEquivalentTo(1))
		Expect(gotTopic).To(Equal("/chatter"))
		Expect(gotPubs).To(ConsistOf("http://pub1:1234/"))
	})
})
